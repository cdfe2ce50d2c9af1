package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiexchange/predictx/internal/book"
	"github.com/saiexchange/predictx/internal/coordinator"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
	"github.com/saiexchange/predictx/internal/money"
	"github.com/saiexchange/predictx/internal/snapshot"
)

const inboundBuffer = 64

// Dispatcher is the subset of the Coordinator the transport depends on.
// Declared here, not in package coordinator, following the teacher's own
// practice of defining the collaborator interface at the consuming edge.
type Dispatcher interface {
	Dispatch(cmd coordinator.Command) (any, error)
	Balance(user string) coordinator.BalanceResult
}

// inboundMsg links a parsed request to the channel its answer must be
// delivered on, so one central goroutine can serialize every Dispatch
// call while many connection goroutines wait concurrently.
type inboundMsg struct {
	req    request
	respCh chan response
}

// snapshotJob asks dispatchLoop to persist state to path between two
// commands, never mid-command. done carries back the write's outcome.
type snapshotJob struct {
	path string
	done chan error
}

// Server accepts newline-delimited JSON connections and serializes every
// request onto a single dispatch goroutine, so the Coordinator underneath
// never observes concurrent callers despite arbitrarily many open
// connections. It also owns the Engine/Ledger/Mapper references needed to
// take a snapshot from that same goroutine, so a periodic save never races
// the commands the dispatch loop is applying.
type Server struct {
	address        string
	port           int
	coord          Dispatcher
	eng            *engine.Engine
	led            *ledger.Ledger
	ids            *identity.Mapper
	maxConnWorkers int
	connLimit      chan struct{}
	inbound        chan inboundMsg
	snapshotJobs   chan snapshotJob
	closed         chan struct{}
}

// New creates a Server that will dispatch every request against coord,
// rendering trade counterparties through ids. eng and led must be the same
// Engine and Ledger coord dispatches against: they're read from here only
// by the dispatch loop's own goroutine, to take snapshots between commands.
// maxConnWorkers caps the number of connections served concurrently; the
// accept loop blocks rather than spawn beyond it.
func New(address string, port int, coord Dispatcher, eng *engine.Engine, led *ledger.Ledger, ids *identity.Mapper, maxConnWorkers int) *Server {
	return &Server{
		address:        address,
		port:           port,
		coord:          coord,
		eng:            eng,
		led:            led,
		ids:            ids,
		maxConnWorkers: maxConnWorkers,
		connLimit:      make(chan struct{}, maxConnWorkers),
		inbound:        make(chan inboundMsg, inboundBuffer),
		snapshotJobs:   make(chan snapshotJob),
		closed:         make(chan struct{}),
	}
}

// Run accepts connections until ctx is canceled or a fatal listener error
// occurs. It blocks until shutdown completes.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		return s.dispatchLoop(t)
	})

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	log.Info().Str("address", listener.Addr().String()).Msg("transport: listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("transport: accept failed")
				continue
			}
		}

		// Block here rather than spawn past maxConnWorkers: a fixed-size
		// worker pool the teacher's sessionHandler used a goroutine cap
		// for, applied at the accept point instead since this server is
		// goroutine-per-connection, not pool-dispatched.
		select {
		case s.connLimit <- struct{}{}:
		case <-t.Dying():
			conn.Close()
			return t.Wait()
		}

		t.Go(func() error {
			defer func() { <-s.connLimit }()
			return s.handleConnection(t, conn)
		})
	}
}

// dispatchLoop is the sole caller of Dispatch/Balance: every request from
// every connection passes through here one at a time, the same serial
// ordering the teacher's sessionHandler enforces over its clientMessages
// channel.
func (s *Server) dispatchLoop(t *tomb.Tomb) error {
	defer close(s.closed)
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbound:
			msg.respCh <- s.handle(msg.req)
		case job := <-s.snapshotJobs:
			job.done <- s.saveSnapshotNow(job.path)
		}
	}
}

// saveSnapshotNow dumps the current Engine/Ledger/Mapper state to path. It
// must only ever run on the dispatchLoop goroutine: that's what makes it
// safe to read the same maps Dispatch mutates without a lock.
func (s *Server) saveSnapshotNow(path string) error {
	doc := snapshot.Dump(s.eng, s.led, s.ids)
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SaveSnapshot asks the dispatch loop to persist state to path between two
// commands, and blocks until that save completes. Safe to call from any
// goroutine, including a periodic-save ticker running outside the dispatch
// loop: unlike a direct snapshot.Dump, this never races Dispatch.
func (s *Server) SaveSnapshot(path string) error {
	job := snapshotJob{path: path, done: make(chan error, 1)}
	select {
	case s.snapshotJobs <- job:
	case <-s.closed:
		return fmt.Errorf("transport: server stopped")
	}
	select {
	case err := <-job.done:
		return err
	case <-s.closed:
		return fmt.Errorf("transport: server stopped")
	}
}

// handleConnection owns one TCP connection end to end: it reads
// newline-delimited JSON requests, forwards each to the dispatch loop, and
// writes back the corresponding response. No state is shared between
// connections other than the inbound channel itself.
func (s *Server) handleConnection(t *tomb.Tomb, conn net.Conn) error {
	defer conn.Close()

	connID := uuid.New().String()
	log.Info().
		Str("conn_id", connID).
		Str("address", conn.RemoteAddr().String()).
		Msg("transport: connection accepted")
	defer log.Info().Str("conn_id", connID).Msg("transport: connection closed")

	scanner := bufio.NewScanner(conn)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeResponse(writer, response{Status: "invalid_argument", Error: err.Error()}); writeErr != nil {
				return nil
			}
			continue
		}

		respCh := make(chan response, 1)
		select {
		case s.inbound <- inboundMsg{req: req, respCh: respCh}:
		case <-t.Dying():
			return nil
		}

		select {
		case resp := <-respCh:
			if err := writeResponse(writer, resp); err != nil {
				return nil
			}
		case <-t.Dying():
			return nil
		}
	}
	return nil
}

func writeResponse(w *bufio.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// handle dispatches one parsed request and builds its wire response. It is
// the only place that translates between wire shapes and Coordinator
// Commands/results.
func (s *Server) handle(req request) response {
	switch req.Type {
	case "get_markets":
		return s.handleGetMarkets()
	case "get_snapshot":
		return s.handleGetSnapshot(req)
	case "place_order":
		return s.handlePlaceOrder(req)
	case "cancel_order":
		return s.handleCancelOrder(req)
	case "balance":
		return s.handleBalance(req)
	case "proof_of_walk":
		return s.handleProofOfWalk(req)
	case "doomscroll_burn":
		return s.handleDoomscrollBurn(req)
	case "settle":
		return s.handleSettle(req)
	default:
		return response{Status: "invalid_argument", Error: fmt.Sprintf("transport: unrecognized request type %q", req.Type)}
	}
}

func (s *Server) handleGetMarkets() response {
	res, err := s.coord.Dispatch(coordinator.GetMarkets{})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.GetMarketsResult)

	rows := make([]marketRow, 0, len(result.Markets))
	for _, m := range result.Markets {
		row := marketRow{ID: m.Market.String(), Name: m.Name}
		if m.HasBid {
			bid := int64(m.BestBid)
			row.BestBid = &bid
		}
		if m.HasAsk {
			ask := int64(m.BestAsk)
			row.BestAsk = &ask
		}
		rows = append(rows, row)
	}
	return response{Status: "ok", Markets: rows}
}

func (s *Server) handleGetSnapshot(req request) response {
	m, err := market.ParseMarketID(req.MarketID)
	if err != nil {
		return response{Status: "invalid_argument", Error: err.Error()}
	}

	res, err := s.coord.Dispatch(coordinator.GetSnapshot{Market: m})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.GetSnapshotResult)

	return response{
		Status: "ok",
		Bids:   toLevelRows(result.Bids),
		Asks:   toLevelRows(result.Asks),
	}
}

func (s *Server) handlePlaceOrder(req request) response {
	m, err := market.ParseMarketID(req.MarketID)
	if err != nil {
		return response{Status: "invalid_argument", Error: err.Error()}
	}
	side, ok := parseSide(req.Side)
	if !ok {
		return response{Status: "invalid_argument", Error: fmt.Sprintf("transport: unrecognized side %q", req.Side)}
	}

	res, err := s.coord.Dispatch(coordinator.PlaceOrder{
		Market:     m,
		MarketName: m.SubjectID,
		Side:       side,
		Price:      market.Price(req.Price),
		Quantity:   market.Quantity(req.Qty),
		OrderID:    market.OrderID(req.ID),
		User:       req.UserID,
	})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.PlaceOrderResult)

	return response{
		Status:     "ok",
		Trades:     s.toTradeRows(result.Trades),
		RestingQty: int64(result.RestingQty),
	}
}

func (s *Server) handleCancelOrder(req request) response {
	res, err := s.coord.Dispatch(coordinator.CancelOrder{OrderID: market.OrderID(req.ID), User: req.UserID})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.CancelOrderResult)
	return response{Status: "ok", Refunded: result.RefundedCents}
}

func (s *Server) handleBalance(req request) response {
	bal := s.coord.Balance(req.UserID)
	positions := make(map[string]int64, len(bal.Positions))
	for m, qty := range bal.Positions {
		positions[m.String()] = qty
	}
	return response{
		Status:    "ok",
		Available: money.FormatDollars(bal.AvailableCents),
		Locked:    money.FormatDollars(bal.LockedCents),
		Positions: positions,
	}
}

func (s *Server) handleProofOfWalk(req request) response {
	res, err := s.coord.Dispatch(coordinator.MintByActivity{User: req.UserID, Steps: req.Steps})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.MintResult)
	return response{Status: "ok", Minted: result.CreditedCents}
}

func (s *Server) handleDoomscrollBurn(req request) response {
	res, err := s.coord.Dispatch(coordinator.BurnByUsage{User: req.UserID, Minutes: req.Minutes})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.BurnResult)
	return response{Status: "ok", Burned: result.BurnedCents}
}

func (s *Server) handleSettle(req request) response {
	res, err := s.coord.Dispatch(coordinator.Settle{SubjectID: req.TargetUserID, ObservedValue: req.ActualValue})
	if err != nil {
		return response{Status: statusFor(err), Error: err.Error()}
	}
	result := res.(coordinator.SettleResult)
	return response{Status: "ok", Trades: s.toTradeRows(result.Trades)}
}

func toLevelRows(levels []book.LevelView) []levelRow {
	rows := make([]levelRow, 0, len(levels))
	for _, lvl := range levels {
		rows = append(rows, levelRow{Price: int64(lvl.Price), Qty: int64(lvl.Quantity)})
	}
	return rows
}

// toTradeRows renders each trade's counterparties back to their external
// names. HouseID never appears in the identity Mapper (it's a synthetic
// settlement counterparty, not a real account), so it's rendered as the
// literal string "house" instead of a failed lookup.
func (s *Server) toTradeRows(trades []market.Trade) []tradeRow {
	rows := make([]tradeRow, 0, len(trades))
	for _, tr := range trades {
		rows = append(rows, tradeRow{
			Market:    tr.Market.String(),
			Buyer:     s.externalName(tr.BuyerUserID),
			Seller:    s.externalName(tr.SellerUserID),
			Price:     int64(tr.Price),
			Qty:       int64(tr.Quantity),
			TakerSide: tr.TakerSide.String(),
		})
	}
	return rows
}

func (s *Server) externalName(id market.UserID) string {
	if id == market.HouseID {
		return "house"
	}
	name, ok := s.ids.External(id)
	if !ok {
		return fmt.Sprintf("%d", id)
	}
	return name
}
