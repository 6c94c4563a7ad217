// Publishes a burst of synthetic transaction records to the feed stream.
// Handy for exercising the monitor loop against a local NATS:
//
//	go run ./scripts/publish-sample -wallet <address> -count 20
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/config"

	"github.com/gagliardetto/solana-go"
	"github.com/nats-io/nats.go"
)

func main() {
	wallet := flag.String("wallet", "", "wallet address to involve in every record")
	count := flag.Int("count", 10, "number of records to publish")
	spacing := flag.Duration("spacing", 2*time.Second, "timestamp spacing between records")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}

	target := *wallet
	if target == "" {
		target = solana.NewWallet().PublicKey().String()
		fmt.Printf("no -wallet given, using generated %s\n", target)
	}
	if _, err := entity.ParseAddress(target); err != nil {
		fmt.Printf("bad wallet address: %v\n", err)
		os.Exit(1)
	}

	conn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		fmt.Printf("connect NATS: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	js, err := conn.JetStream()
	if err != nil {
		fmt.Printf("jetstream: %v\n", err)
		os.Exit(1)
	}

	subject := fmt.Sprintf("%s.events", cfg.NATS.SubjectPrefix)
	contract := solana.NewWallet().PublicKey().String()
	counterparty := solana.NewWallet().PublicKey().String()
	base := time.Now().Add(-time.Duration(*count) * *spacing)

	for i := 0; i < *count; i++ {
		kind := "swap_buy"
		if i%3 == 2 {
			kind = "swap_sell"
		}
		record := entity.RawRecord{
			Signature:   solana.NewWallet().PublicKey().String(),
			From:        target,
			To:          counterparty,
			Value:       fmt.Sprintf("%d", 1000000*(i+1)),
			Instruction: kind,
			Contract:    contract,
			Timestamp:   base.Add(time.Duration(i) * *spacing).Unix(),
			Network:     "solana",
		}
		payload, err := json.Marshal(record)
		if err != nil {
			fmt.Printf("marshal record: %v\n", err)
			os.Exit(1)
		}
		if _, err := js.Publish(subject, payload); err != nil {
			fmt.Printf("publish: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("published %d records to %s (wallet %s, contract %s)\n",
		*count, subject, target, contract)
}
