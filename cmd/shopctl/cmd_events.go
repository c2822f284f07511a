package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/simpleshop/internal/messaging/kafka"
)

func newEventsCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read service events from Kafka",
	}

	var (
		brokers   string
		topics    []string
		group     string
		fromStart bool
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they arrive until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if brokers == "" {
				brokers = envDefault(getenv, envKafkaBrokers, "")
			}
			brokerList := splitList(brokers)
			if len(brokerList) == 0 {
				return errors.New(envKafkaBrokers + " (or --brokers) is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer, err := kafka.NewConsumer(brokerList, group, topics, fromStart, printEvent(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			consumer.Start(ctx)
			<-ctx.Done()
			return consumer.Stop()
		},
	}
	tail.Flags().StringVar(&brokers, "brokers", "", "comma-separated brokers (fallback: "+envKafkaBrokers+")")
	tail.Flags().StringSliceVar(&topics, "topic", []string{kafka.TopicOrderEvents, kafka.TopicCustomerEvents}, "topics to read")
	tail.Flags().StringVar(&group, "group", "shopctl-tail", "consumer group id")
	tail.Flags().BoolVar(&fromStart, "from-beginning", false, "read topics from the oldest offset")

	cmd.AddCommand(tail, newReplayDLQCmd(getenv))
	return cmd
}

// printEvent печатает одно событие в строку: topic/partition@offset key payload.
func printEvent(out io.Writer) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		_, err := fmt.Fprintf(out, "%s/%d@%d %s %s\n",
			message.Topic, message.Partition, message.Offset, message.Key, message.Value)
		return err
	}
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
