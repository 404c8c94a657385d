// Command copybotctl is a one-shot CLI snapshot tool: it prints
// breaker states and the aggregation buffer's bucket count from the running
// process's admin HTTP surface, grounded on Quentinlac-poly's various
// cmd/inspect_db and cmd/test_trade one-shot tools, rendered with
// tablewriter the way AlejandroRuiz99-polybot's console notifier
// renders opportunity tables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
)

type breakerSnapshot struct {
	Name            string
	State           string
	FailureCount    int
	LastFailureTime time.Time
}

type breakersResponse struct {
	Breakers []breakerSnapshot `json:"breakers"`
}

type aggregatorResponse struct {
	BufferSize int `json:"bufferSize"`
}

func main() {
	adminAddr := flag.String("admin", envOr("COPYBOT_ADMIN_ADDR", "http://localhost:8090"), "admin surface base URL")
	reset := flag.Bool("reset", false, "reset all breakers before printing")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	if *reset {
		if err := postReset(client, *adminAddr); err != nil {
			log.Fatalf("[copybotctl] reset failed: %v", err)
		}
		fmt.Println("breakers reset")
	}

	breakers, err := getBreakers(client, *adminAddr)
	if err != nil {
		log.Fatalf("[copybotctl] fetch breakers failed: %v", err)
	}
	printBreakers(os.Stdout, breakers)

	buf, err := getAggregatorStatus(client, *adminAddr)
	if err != nil {
		log.Fatalf("[copybotctl] fetch aggregator status failed: %v", err)
	}
	fmt.Printf("\naggregation buffer: %d live buckets\n", buf.BufferSize)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBreakers(client *http.Client, adminAddr string) ([]breakerSnapshot, error) {
	resp, err := client.Get(adminAddr + "/admin/breakers")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeBreakers(resp.Body)
}

func postReset(client *http.Client, adminAddr string) error {
	resp, err := client.Post(adminAddr+"/admin/breakers/reset", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned status %d", resp.StatusCode)
	}
	return nil
}

func getAggregatorStatus(client *http.Client, adminAddr string) (aggregatorResponse, error) {
	resp, err := client.Get(adminAddr + "/admin/aggregator")
	if err != nil {
		return aggregatorResponse{}, err
	}
	defer resp.Body.Close()
	var out aggregatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return aggregatorResponse{}, err
	}
	return out, nil
}

func decodeBreakers(body io.Reader) ([]breakerSnapshot, error) {
	var wire breakersResponse
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		return nil, err
	}
	return wire.Breakers, nil
}

func printBreakers(w io.Writer, breakers []breakerSnapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "State", "Failures", "Last Failure"})

	for _, b := range breakers {
		lastFailure := "-"
		if !b.LastFailureTime.IsZero() {
			lastFailure = b.LastFailureTime.Format("15:04:05")
		}
		table.Append([]string{
			b.Name,
			b.State,
			fmt.Sprintf("%d", b.FailureCount),
			lastFailure,
		})
	}

	table.Render()
}
