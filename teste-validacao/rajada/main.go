package main

// Dispara uma rajada de submissões contra o gateway e conta os status.
// Com um consumidor lento (cmd/example-server) dá para ver a fila encher:
// primeiro só 200, depois 429 com Retry-After, e 503 depois do shutdown.
//
//	go run ./teste-validacao/rajada -url http://localhost:8081/events -n 50 -c 10

import (
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"relay-gateway/relay/infra"
)

func main() {
	url := flag.String("url", "http://localhost:8080/submit", "endpoint de submissão")
	n := flag.Int("n", 100, "total de submissões")
	c := flag.Int("c", 10, "submissões simultâneas")
	key := flag.String("key", "", "valor do header X-Api-Key (vazio = por IP)")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu     sync.Mutex
		counts = map[int]int{}
		errs   int
	)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < *c; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				code, err := submit(client, *url, *key, i)
				mu.Lock()
				if err != nil {
					errs++
				} else {
					counts[code]++
				}
				mu.Unlock()
			}
		}()
	}

	start := time.Now()
	for i := 0; i < *n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("%d submissões em %s\n", *n, time.Since(start).Round(time.Millisecond))
	for _, code := range codes {
		fmt.Printf("  %d %-22s %d\n", code, http.StatusText(code), counts[code])
	}
	if errs > 0 {
		fmt.Printf("  erros de transporte     %d\n", errs)
		os.Exit(1)
	}
}

func submit(client *http.Client, url, key string, seq int) (int, error) {
	body, err := infra.MarshalJSON(map[string]any{
		"recipient": fmt.Sprintf("cliente-%d", seq),
		"body":      infra.NewID(),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
