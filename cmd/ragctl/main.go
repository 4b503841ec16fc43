// ragctl is a small debug CLI over the embedding client: embed a piece of
// text or an image file and print the resulting vector as JSON, the way a
// developer verifies the embedding service is reachable and returns vectors
// of the expected dimension without going through the full agent loop.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"

	"flag"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/config"
	"clinicalrag/internal/embedding"
)

func main() {
	log.SetFlags(0)
	var (
		text      = flag.String("text", "", "text to embed (use -stdin to read from STDIN instead)")
		stdin     = flag.Bool("stdin", false, "read entire STDIN as input text")
		imagePath = flag.String("image", "", "path to an image file to embed instead of text")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	retry := apperr.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay}
	client := embedding.New(cfg.EmbeddingURL, cfg.ImageEmbedURL, retry)
	ctx := context.Background()

	var vec []float32
	switch {
	case *imagePath != "":
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			log.Fatalf("read image: %v", err)
		}
		vec, err = client.EmbedImage(ctx, data)
		if err != nil {
			log.Fatalf("embed image: %v", err)
		}
	default:
		input := *text
		if *stdin {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				log.Fatalf("read stdin: %v", err)
			}
			input = string(b)
		}
		if input == "" {
			log.Fatal("no input provided; use -text, -stdin, or -image")
		}
		vec, err = client.EmbedText(ctx, input)
		if err != nil {
			log.Fatalf("embed text: %v", err)
		}
	}

	if client.IsMockMode() {
		log.Println("warning: embedding service unreachable, this is a mock-mode zero vector")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(vec); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
