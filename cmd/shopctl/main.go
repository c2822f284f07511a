// Command shopctl: административная утилита магазина: токены, заказы через gRPC,
// состояние outbox и просмотр событий в Kafka.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	envJWTSecret    = "SHOP_JWT_SECRET"
	envGRPCAddr     = "SHOP_GRPC_ADDR"
	envToken        = "SHOP_TOKEN"
	envPostgresDSN  = "SHOP_POSTGRES_DSN"
	envKafkaBrokers = "SHOP_KAFKA_BROKERS"

	defaultGRPCAddr = "localhost:50051"
)

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "shopctl: admin CLI for the shop service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newTokenCmd(getenv))
	root.AddCommand(newOrdersCmd(getenv))
	root.AddCommand(newOutboxCmd(getenv))
	root.AddCommand(newEventsCmd(getenv))
	return root
}

// envDefault возвращает значение переменной окружения или fallback.
func envDefault(getenv func(string) string, key, fallback string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return fallback
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
