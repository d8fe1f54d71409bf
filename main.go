/*
vaultmonitor - Exports the expiration of Vault secrets as Prometheus metrics
*/

package main

import (
	"context"
	"os/signal"
	"syscall"

	vaultmonitor "github.com/MatteoMori/vaultmonitor/cmd/vaultmonitor"
)

func main() {
	// Cancelled on interrupt or terminate signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vaultmonitor.Execute(ctx) // Execute the root CLI command (./cmd/vaultmonitor/root.go)
}
