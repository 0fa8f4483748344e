package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	beanqAddr := flag.String("beanq-addr", "localhost:11300", "beanq server address")
	port := flag.Int("port", 8080, "HTTP server port")
	flag.Parse()

	inspector := NewInspector(*beanqAddr)
	if _, err := inspector.GetStats(); err != nil {
		log.Fatalf("failed to reach beanq server at %s: %v", *beanqAddr, err)
	}
	log.Printf("connected to beanq at %s", *beanqAddr)

	handler, err := NewHandler(inspector)
	if err != nil {
		log.Fatalf("failed to create handler: %v", err)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		server.Close()
	}()

	log.Printf("beanq monitor starting on http://localhost%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
