package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/simpleshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/simpleshop/internal/version"
)

type loadMode string

const (
	modePlace             loadMode = "place"
	modePlaceUpdate       loadMode = "place-update"
	modePlaceUpdateDelete loadMode = "place-update-delete"
)

type config struct {
	addr        string
	httpAddr    string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	deleteRate  int
	product     string
	quantity    int
	customerTag string
	outputPath  string
}

// orderClient: часть gRPC-клиента, которой пользуется нагрузочный сценарий.
type orderClient interface {
	PlaceOrder(ctx context.Context, in *grpcsvc.PlaceOrderRequest, opts ...grpc.CallOption) (*grpcsvc.OrderReply, error)
	UpdateOrder(ctx context.Context, in *grpcsvc.UpdateOrderRequest, opts ...grpc.CallOption) (*grpcsvc.OrderReply, error)
	DeleteOrder(ctx context.Context, in *grpcsvc.DeleteOrderRequest, opts ...grpc.CallOption) (*grpcsvc.DeleteOrderReply, error)
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var modeValue string
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.StringVar(&cfg.httpAddr, "http-addr", "http://localhost:8080", "HTTP API base URL used to register load customers")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-update | place-update-delete")
	fs.IntVar(&cfg.deleteRate, "delete-rate", 0, "delete probability in percent for place-update mode (0..100)")
	fs.StringVar(&cfg.product, "product", "load-widget", "ordered product")
	fs.IntVar(&cfg.quantity, "quantity", 1, "ordered quantity")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "username prefix of provisioned load customers")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case strings.TrimSpace(cfg.httpAddr) == "":
		return cfg, errors.New("http-addr is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.deleteRate < 0 || cfg.deleteRate > 100:
		return cfg, errors.New("delete-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.product) == "":
		return cfg, errors.New("product is required")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modePlace, modePlaceUpdate, modePlaceUpdateDelete:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
	accounts, err := provisionAccounts(context.Background(), newProvisioner(cfg.httpAddr, cfg.timeout), cfg.customerTag, runID, cfg.concurrency)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to provision load customers: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUserAgent(version.UserAgent("loadtest")),
		)
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewOrderServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := runLoad(cfg, clients, accounts)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runLoad раздаёт сценарии воркерам и собирает итоговый отчёт.
// Каждый воркер работает от имени своего покупателя из accounts.
func runLoad(cfg config, clients []orderClient, accounts []account) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(client orderClient, acc account) {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(client, acc, cfg, index, col)
			}
		}(clients[workerID%len(clients)], accounts[workerID%len(accounts)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario выполняет один сценарий от имени покупателя acc.
func runScenario(client orderClient, acc account, cfg config, index int, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record(scenarioMetric, time.Since(scenarioStart), grpcCode(err))
	}()
	token := acc.token

	placed, err := callRPC(col, "PlaceOrder", token, cfg.timeout, func(ctx context.Context) (*grpcsvc.OrderReply, error) {
		return client.PlaceOrder(ctx, &grpcsvc.PlaceOrderRequest{Product: cfg.product, Quantity: int32(cfg.quantity)})
	})
	if err != nil {
		return err
	}
	orderID := placed.Order.ID
	if orderID <= 0 {
		return status.Error(codes.Internal, "place response returned empty order id")
	}
	if cfg.mode == modePlace {
		return nil
	}

	_, err = callRPC(col, "UpdateOrder", token, cfg.timeout, func(ctx context.Context) (*grpcsvc.OrderReply, error) {
		return client.UpdateOrder(ctx, &grpcsvc.UpdateOrderRequest{OrderID: orderID, Product: cfg.product, Quantity: int32(cfg.quantity + 1)})
	})
	if err != nil {
		return err
	}

	if cfg.mode == modePlaceUpdateDelete || shouldDelete(index, cfg.deleteRate) {
		_, err = callRPC(col, "DeleteOrder", token, cfg.timeout, func(ctx context.Context) (*grpcsvc.DeleteOrderReply, error) {
			return client.DeleteOrder(ctx, &grpcsvc.DeleteOrderRequest{OrderID: orderID})
		})
	}
	return err
}

func callRPC[Resp any](col *collector, name, token string, timeout time.Duration, call func(context.Context) (*Resp, error)) (*Resp, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(grpcsvc.WithBearer(context.Background(), token), timeout)
	defer cancel()

	resp, err := call(ctx)
	col.record(name, time.Since(start), grpcCode(err))
	return resp, err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldDelete(index, deleteRate int) bool {
	if deleteRate <= 0 {
		return false
	}
	if deleteRate >= 100 {
		return true
	}
	return index%100 < deleteRate
}
