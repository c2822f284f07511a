package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/simpleshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/simpleshop/internal/version"
)

const rpcTimeout = 10 * time.Second

// ordersClient хранит настройки подключения, общие для подкоманд orders.
type ordersClient struct {
	getenv func(string) string
	addr   string
	token  string
}

func (c *ordersClient) call(cmd *cobra.Command, fn func(ctx context.Context, client *grpcsvc.OrderServiceClient) (any, error)) error {
	addr := c.addr
	if addr == "" {
		addr = envDefault(c.getenv, envGRPCAddr, defaultGRPCAddr)
	}
	token := c.token
	if token == "" {
		token = envDefault(c.getenv, envToken, "")
	}
	if token == "" {
		return errors.New(envToken + " (or --token) is required")
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent("shopctl")),
	)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(grpcsvc.WithBearer(cmd.Context(), token), rpcTimeout)
	defer cancel()

	reply, err := fn(ctx, grpcsvc.NewOrderServiceClient(conn))
	if err != nil {
		st := status.Convert(err)
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	return printJSON(cmd.OutOrStdout(), reply)
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}

func newOrdersCmd(getenv func(string) string) *cobra.Command {
	client := &ordersClient{getenv: getenv}
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage orders over gRPC",
	}
	cmd.PersistentFlags().StringVar(&client.addr, "addr", "", "gRPC address (fallback: "+envGRPCAddr+", "+defaultGRPCAddr+")")
	cmd.PersistentFlags().StringVar(&client.token, "token", "", "bearer token (fallback: "+envToken+")")

	var limit int32
	list := &cobra.Command{
		Use:   "list",
		Short: "List own orders, or all orders for an admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.call(cmd, func(ctx context.Context, c *grpcsvc.OrderServiceClient) (any, error) {
				return c.ListOrders(ctx, &grpcsvc.ListOrdersRequest{Limit: limit})
			})
		},
	}
	list.Flags().Int32Var(&limit, "limit", 0, "max orders to return (0 = server default)")

	get := &cobra.Command{
		Use:   "get <order-id>",
		Short: "Show an order with its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			return client.call(cmd, func(ctx context.Context, c *grpcsvc.OrderServiceClient) (any, error) {
				return c.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: id})
			})
		},
	}

	var (
		customerID string
		product    string
		quantity   int32
	)
	place := &cobra.Command{
		Use:   "place",
		Short: "Place an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.call(cmd, func(ctx context.Context, c *grpcsvc.OrderServiceClient) (any, error) {
				return c.PlaceOrder(ctx, &grpcsvc.PlaceOrderRequest{CustomerID: customerID, Product: product, Quantity: quantity})
			})
		},
	}
	place.Flags().StringVar(&customerID, "customer", "", "customer id (default: token subject)")
	place.Flags().StringVar(&product, "product", "", "product name")
	place.Flags().Int32Var(&quantity, "quantity", 1, "quantity")
	_ = place.MarkFlagRequired("product")

	update := &cobra.Command{
		Use:   "update <order-id>",
		Short: "Change product and quantity of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			return client.call(cmd, func(ctx context.Context, c *grpcsvc.OrderServiceClient) (any, error) {
				return c.UpdateOrder(ctx, &grpcsvc.UpdateOrderRequest{OrderID: id, Product: product, Quantity: quantity})
			})
		},
	}
	update.Flags().StringVar(&product, "product", "", "product name")
	update.Flags().Int32Var(&quantity, "quantity", 1, "quantity")
	_ = update.MarkFlagRequired("product")

	del := &cobra.Command{
		Use:   "delete <order-id>",
		Short: "Delete an order and cancel its processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			return client.call(cmd, func(ctx context.Context, c *grpcsvc.OrderServiceClient) (any, error) {
				return c.DeleteOrder(ctx, &grpcsvc.DeleteOrderRequest{OrderID: id})
			})
		},
	}

	cmd.AddCommand(list, get, place, update, del)
	return cmd
}
