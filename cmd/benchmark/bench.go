package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"

	"github.com/modelrelay/relay/internal/config"
	"github.com/modelrelay/relay/internal/gateway"
	"github.com/modelrelay/relay/internal/keys"
	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/internal/provider/openai"
	"github.com/modelrelay/relay/internal/server"
	"github.com/modelrelay/relay/internal/usage"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	streamChunks = []string{
		`data: {"choices":[{"delta":{"content":"Bench"}}]}`,
		`data: {"choices":[{"delta":{"content":"mark"}}]}`,
		`data: {"choices":[{"delta":{"content":" response"}}]}`,
	}
	unaryResp = `{"id":"bench-123","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	flag.Parse()

	go startMockUpstream()

	go startRelay()
	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	mode := "Unary"
	body := `{"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "Hello"}]}`
	if *stream {
		mode = "Streaming"
		body = `{"model": "gpt-4o-mini", "stream": true, "messages": [{"role": "user", "content": "Hello"}]}`
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: "POST",
		URL:    fmt.Sprintf("http://localhost:%d/v1/chat/completions", appPort),
		Body:   []byte(body),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "relay") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	for _, msg := range metrics.Errors {
		fmt.Println(msg)
	}
}

// startRelay runs the gateway in-process against the mock upstream, with
// log-free accounting so the benchmark measures the proxy path only.
func startRelay() {
	log := zap.NewNop()

	adapter, err := openai.NewAdapter(provider.Config{
		ID:      "openai",
		Name:    "OpenAI (mock)",
		BaseURL: fmt.Sprintf("http://localhost:%d/v1", mockPort),
		Enabled: true,
	})
	if err != nil {
		panic(err)
	}

	registry := provider.NewRegistry()
	registry.Register(adapter)

	service := gateway.NewService(log, registry,
		&keys.Static{Keys: map[string]string{"openai": "bench-key"}},
		usage.Nop{}, &http.Client{}, 30*time.Second)

	cfg := &config.Config{}
	cfg.Server.Port = fmt.Sprintf("%d", appPort)
	cfg.Server.Env = "production"

	srv := server.New(cfg, log, service, nil)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", appPort), srv.Handler()); err != nil {
		panic(err)
	}
}

func startMockUpstream() {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, chunk := range streamChunks {
				time.Sleep(10 * time.Millisecond)
				fmt.Fprintf(w, "%s\n\n", chunk)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, unaryResp)
	})

	if err := http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux); err != nil {
		panic(err)
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	panic("relay did not become ready")
}
