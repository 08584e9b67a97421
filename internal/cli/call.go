package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mini-lb/loadbalance"
	"mini-lb/message"
)

var (
	callData           string
	callHeaders        []string
	callCharset        string
	callConnectTimeout time.Duration
	callReadTimeout    time.Duration
	callHashKey        string
	callInclude        bool
)

var callCmd = &cobra.Command{
	Use:   "call METHOD URL",
	Short: "Send a request to a logical service",
	Long: `Send one HTTP request. The URL host is a service name from the
configuration; lbctl chooses the instance and retries per the service policy.

Examples:
  lbctl call GET http://users/v1/users/1 -c lb.yaml
  lbctl call POST http://accounts/v1/users -d '{"name":"alice"}' -H 'Content-Type: application/json'
  lbctl call POST http://accounts/v1/users -d @user.json --read-timeout 500ms
  lbctl call GET http://sessions/v1/s/42 --hash-key 42`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&callData, "data", "d", "", "Request body, or @file to read it from a file")
	callCmd.Flags().StringArrayVarP(&callHeaders, "header", "H", nil, "Request header 'Name: value' (repeatable)")
	callCmd.Flags().StringVar(&callCharset, "charset", "", "Charset of the request body, e.g. UTF-8")
	callCmd.Flags().DurationVar(&callConnectTimeout, "connect-timeout", 0, "Connect timeout for this call (0 = service default)")
	callCmd.Flags().DurationVar(&callReadTimeout, "read-timeout", 0, "Read timeout for this call (0 = service default)")
	callCmd.Flags().StringVar(&callHashKey, "hash-key", "", "Routing key for consistent_hash services")
	callCmd.Flags().BoolVarP(&callInclude, "include", "i", false, "Print the status line and response headers")
}

func runCall(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(args[0], args[1], callData, callHeaders, callCharset)
	if err != nil {
		return err
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	cli := e.newClient()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if callHashKey != "" {
		ctx = loadbalance.WithHashKey(ctx, callHashKey)
	}

	var opts *message.Options
	if callConnectTimeout != 0 || callReadTimeout != 0 {
		opts = &message.Options{ConnectTimeout: callConnectTimeout, ReadTimeout: callReadTimeout}
	}

	resp, err := cli.Execute(ctx, req, opts)
	if err != nil {
		return err
	}
	defer resp.Close()

	e.logger.Debug("call completed",
		zap.Stringer("address", resp.RequestedAddress),
		zap.Int("attempts", len(resp.Attempts)))
	return writeResponse(cmd.OutOrStdout(), resp, callInclude)
}

// buildRequest turns command-line arguments into a request. data starting
// with '@' names a file holding the body.
func buildRequest(method, rawURL, data string, headers []string, charset string) (*message.Request, error) {
	var body []byte
	if strings.HasPrefix(data, "@") {
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		body = b
	} else if data != "" {
		body = []byte(data)
	}

	req := message.NewRequest(strings.ToUpper(method), rawURL, body)
	req.Charset = charset
	for _, h := range headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		req.Header.Add(name, value)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func parseHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q, want 'Name: value'", h)
	}
	return name, strings.TrimSpace(value), nil
}

func writeResponse(w io.Writer, resp *message.Response, include bool) error {
	if include {
		fmt.Fprintf(w, "HTTP %d %s\n", resp.Status, resp.Reason)
		names := make([]string, 0, len(resp.Header))
		for name := range resp.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range resp.Header[name] {
				fmt.Fprintf(w, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(w)
	}
	if !resp.HasBody() {
		return nil
	}
	_, err := io.Copy(w, resp.Body)
	return err
}
