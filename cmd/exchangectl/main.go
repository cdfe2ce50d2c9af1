// exchangectl is a thin CLI client for the newline-JSON exchange protocol:
// one request per invocation, response printed to stdout as JSON.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:7890", "address of the exchange daemon")
	reqType := flag.String("type", "get_markets", "request type: get_markets|get_snapshot|place_order|cancel_order|balance|proof_of_walk|doomscroll_burn|settle")

	marketID := flag.String("market", "", "market id, \"<subject>,<threshold>\"")
	userID := flag.String("user", "", "user id")
	side := flag.String("side", "buy", "order side: buy|sell")
	price := flag.Int64("price", 0, "price in integer cents")
	qty := flag.Int64("qty", 0, "quantity")
	orderID := flag.Int64("id", 0, "order id")
	steps := flag.Int64("steps", 0, "proof_of_walk step count")
	minutes := flag.Int64("minutes", 0, "doomscroll_burn minute count")
	targetUser := flag.String("target", "", "settle's target_user_id (subject)")
	actualValue := flag.Int64("actual-value", 0, "settle's actual_value")

	flag.Parse()

	req := buildRequest(*reqType, *marketID, *userID, *side, *price, *qty, *orderID, *steps, *minutes, *targetUser, *actualValue)

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchangectl: connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchangectl: encode request: %v\n", err)
		os.Exit(1)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "exchangectl: send request: %v\n", err)
		os.Exit(1)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchangectl: read response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(strings.TrimRight(line, "\n"))
}

func buildRequest(reqType, marketID, userID, side string, price, qty, orderID, steps, minutes int64, targetUser string, actualValue int64) map[string]any {
	req := map[string]any{"type": reqType}
	switch reqType {
	case "get_markets":
	case "get_snapshot":
		req["market_id"] = marketID
	case "place_order":
		req["market_id"] = marketID
		req["user_id"] = userID
		req["side"] = side
		req["price"] = price
		req["qty"] = qty
		req["id"] = orderID
	case "cancel_order":
		req["id"] = orderID
		req["user_id"] = userID
	case "balance":
		req["user_id"] = userID
	case "proof_of_walk":
		req["user_id"] = userID
		req["steps"] = steps
	case "doomscroll_burn":
		req["user_id"] = userID
		req["minutes"] = minutes
	case "settle":
		req["target_user_id"] = targetUser
		req["actual_value"] = actualValue
	}
	return req
}
