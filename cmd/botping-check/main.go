package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	grpctls "github.com/EternisAI/botping/internal/grpc/tls"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type options struct {
	address    string
	token      string
	handle     string
	timeout    time.Duration
	tls        bool
	caFile     string
	certFile   string
	keyFile    string
	serverName string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	creds := insecure.NewCredentials()
	if opts.tls {
		creds, err = grpctls.ClientCredentials(opts.caFile, opts.certFile, opts.keyFile, opts.serverName)
		if err != nil {
			fmt.Fprintf(stderr, "tls: %v\n", err)
			return 1
		}
	}

	conn, err := dial(opts.address, creds)
	if err != nil {
		fmt.Fprintf(stderr, "connect: %v\n", err)
		return 1
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	alive, err := check(ctx, healthpb.NewHealthClient(conn), opts.handle, opts.token)
	if err != nil {
		fmt.Fprintf(stdout, "%s: %s\n", opts.handle, status.Convert(err).Message())
		return 1
	}
	if !alive {
		fmt.Fprintf(stdout, "%s: no response\n", opts.handle)
		return 1
	}
	fmt.Fprintf(stdout, "%s: alive\n", opts.handle)
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("botping-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.address, "address", "localhost:9090", "gRPC server address")
	fs.StringVar(&opts.token, "token", os.Getenv("BOTPING_TOKEN"), "caller token (defaults to $BOTPING_TOKEN)")
	fs.StringVar(&opts.handle, "handle", "", "agent handle to check, e.g. @echobot")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall deadline")
	fs.BoolVar(&opts.tls, "tls", false, "use TLS")
	fs.StringVar(&opts.caFile, "ca-file", "", "CA certificate for TLS")
	fs.StringVar(&opts.certFile, "cert-file", "", "client certificate for mutual TLS")
	fs.StringVar(&opts.keyFile, "key-file", "", "client key for mutual TLS")
	fs.StringVar(&opts.serverName, "server-name", "", "TLS server name override")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.handle == "" {
		fmt.Fprintln(stderr, "-handle is required")
		return opts, flag.ErrHelp
	}
	return opts, nil
}

func dial(address string, creds credentials.TransportCredentials, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, extra...)
	return grpc.NewClient(address, dialOpts...)
}

// check asks the liveness service about handle and reports whether it is
// alive. Rejections and unreachable agents come back as errors.
func check(ctx context.Context, client healthpb.HealthClient, handle, token string) (bool, error) {
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", token)
	}
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: handle})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
