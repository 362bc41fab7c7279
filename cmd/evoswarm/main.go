// Command evoswarm runs either the coordination server or a worker
// node for one of the bundled search harnesses (nqueens, sudoku, tsp).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/coordinator"
	"github.com/evoswarm/evoswarm/examples/nqueens"
	"github.com/evoswarm/evoswarm/examples/sudoku"
	"github.com/evoswarm/evoswarm/examples/tsp"
	"github.com/evoswarm/evoswarm/individual"
	"github.com/evoswarm/evoswarm/logging"
	"github.com/evoswarm/evoswarm/node"
	"github.com/evoswarm/evoswarm/transport"

	"github.com/schollz/progressbar/v3"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("evoswarm: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("evoswarm", flag.ExitOnError)

	server := fs.Bool("server", false, "run as the coordination server")
	ip := fs.String("ip", "127.0.0.1", "transport bind/dial address")
	port := fs.Int("port", 7800, "transport port")
	population := fs.Int("population", 0, "max_population_size override")
	limit := fs.Float64("limit", 0, "fitness_limit override")
	iter := fs.Uint64("iter", 0, "num_of_iterations override")
	mutate := fs.Uint64("mutate", 0, "num_of_mutations override")
	method := fs.String("method", "", "mutate_method override (simple|only_best|low_mem)")
	deleteTag := fs.String("delete", "", "delete_method override (sort_keep|sort_unique|random_best3)")
	configPath := fs.String("config", "", "optional TOML config file, applied before flag overrides")
	example := fs.String("example", "tsp", "bundled harness (nqueens|sudoku|tsp)")
	showConfig := fs.Bool("show-config", false, "print the resolved configuration and exit")
	progress := fs.Bool("progress", false, "show a round-progress indicator on a TTY")
	workers := fs.Int("workers", 0, "run N in-process workers against a local server (demo mode)")
	outDir := fs.String("out", ".", "directory for persisted population/individual files and server.log")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveConfig(fs, *configPath, *population, *limit, *iter, *mutate, *method, *deleteTag)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *showConfig {
		fmt.Println(cfg.String())
		return nil
	}

	addr := net.JoinHostPort(*ip, strconv.Itoa(*port))

	switch *example {
	case "nqueens":
		return dispatch[*nqueens.Board](cfg, addr, *server, *workers, *progress, *outDir, nqueensSeed)
	case "sudoku":
		return dispatch[*sudoku.Grid](cfg, addr, *server, *workers, *progress, *outDir, sudokuSeed)
	case "tsp":
		return dispatch[*tsp.Tour](cfg, addr, *server, *workers, *progress, *outDir, tspSeed)
	default:
		return fmt.Errorf("unknown --example %q (want nqueens|sudoku|tsp)", *example)
	}
}

// resolveConfig layers defaults, an optional TOML file, and explicit
// flag overrides, in that order (flags always win).
func resolveConfig(fs *flag.FlagSet, configPath string, population int, limit float64, iter, mutate uint64, method, deleteTag string) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadTOML(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["population"] {
		cfg.MaxPopulationSize = population
	}
	if set["limit"] {
		cfg.FitnessLimit = limit
	}
	if set["iter"] {
		cfg.NumOfIterations = iter
	}
	if set["mutate"] {
		cfg.NumOfMutations = mutate
	}
	if set["method"] {
		m, err := config.ParseMutateMethod(method)
		if err != nil {
			return config.Config{}, err
		}
		cfg.MutateMethod = m
	}
	if set["delete"] {
		d, err := config.ParseDeleteMethod(deleteTag)
		if err != nil {
			return config.Config{}, err
		}
		cfg.DeleteMethod = d
	}
	return cfg, nil
}

func nqueensSeed(rng *rand.Rand) *nqueens.Board { return nqueens.NewRandomBoard(rng) }
func sudokuSeed(rng *rand.Rand) *sudoku.Grid    { return sudoku.NewFromPuzzle(sudoku.ClassicPuzzle, rng) }
func tspSeed(rng *rand.Rand) *tsp.Tour          { return tsp.NewRandomTour(tsp.Cities20, rng) }

// dispatch instantiates the generic server/worker/demo run loops for
// one concrete individual type T, chosen at runtime by --example.
func dispatch[T individual.Individual[T]](cfg config.Config, addr string, asServer bool, workers int, showProgress bool, outDir string, seedFn func(*rand.Rand) T) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	switch {
	case asServer:
		return runServer[T](ctx, cfg, addr, outDir, seedFn, showProgress)
	case workers > 0:
		return runDemo[T](ctx, cfg, addr, outDir, workers, seedFn, showProgress)
	default:
		return runWorker[T](ctx, cfg, addr, seedFn, showProgress)
	}
}

func runServer[T individual.Individual[T]](ctx context.Context, cfg config.Config, addr, outDir string, seedFn func(*rand.Rand) T, showProgress bool) error {
	logger, err := logging.NewFile(outDir+"/server.log", "")
	if err != nil {
		return err
	}

	seed := seedFn(rand.New(rand.NewSource(time.Now().UnixNano())))
	coord := coordinator.New[T](seed, cfg, outDir, logger)

	if showProgress && isTerminal(os.Stdout) {
		bar := progressbar.NewOptions(-1, progressbar.OptionSetDescription("persisting"))
		coord.OnPersisted = func() { _ = bar.Add(1) }
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	transport.RegisterCoordinatorServer(grpcServer, coord)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Infof("shutting down server")
		grpcServer.GracefulStop()
	}()

	logger.Infof("server listening on %s", addr)
	serveErr := grpcServer.Serve(lis)

	if err := coord.FinishJob(); err != nil {
		logger.Errorf("final persistence failed: %v", err)
		return err
	}
	return serveErr
}

func runWorker[T individual.Individual[T]](ctx context.Context, cfg config.Config, addr string, seedFn func(*rand.Rand) T, showProgress bool) error {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer cc.Close()

	pid := os.Getpid()
	logPath := fmt.Sprintf("node_%d.log", pid)
	workerLog, err := logging.NewFile(logPath, "")
	if err != nil {
		return err
	}

	client := transport.NewCoordinatorClient(cc)
	seed := seedFn(rand.New(rand.NewSource(time.Now().UnixNano())))
	w := node.New[T](seed, cfg, client, fmt.Sprintf("worker-%d", pid), workerLog)

	if showProgress && isTerminal(os.Stdout) {
		bar := progressbar.NewOptions(int(cfg.NumOfIterations), progressbar.OptionSetDescription("searching"))
		w.OnRound = func() { _ = bar.Add(1) }
	}

	return w.Run(ctx)
}

// runDemo starts a local server and `workers` in-process clients
// against it over a real loopback gRPC connection. The server is
// stopped once every worker has returned (normally via a Finished
// reply, or on the first worker error); errgroup gives the worker
// fan-out first-error propagation without a bare sync.WaitGroup.
func runDemo[T individual.Individual[T]](ctx context.Context, cfg config.Config, addr, outDir string, workers int, seedFn func(*rand.Rand) T, showProgress bool) error {
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- runServer[T](serverCtx, cfg, addr, outDir, seedFn, showProgress) }()

	// Give the listener a moment to come up before workers dial it.
	time.Sleep(50 * time.Millisecond)

	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			return runWorker[T](gctx, cfg, addr, seedFn, false)
		})
	}
	workerErr := group.Wait()

	stopServer()
	serverErr := <-serverErrCh

	if workerErr != nil {
		return workerErr
	}
	return serverErr
}

func loggingInterceptor(log *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		status := "OK"
		if err != nil {
			status = "ERROR"
		}
		log.Infof("%s %s %v", info.FullMethod, status, time.Since(start))
		return resp, err
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
