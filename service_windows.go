//go:build windows

// Windows service support for the PDF generation backend, built on
// github.com/kardianos/service. The service wrapper delegates to run()
// so foreground and service modes share one startup path.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
)

// Program implements service.Interface around the application's run loop.
type Program struct {
	exit chan struct{}
}

// Start launches the run loop in a goroutine. The service control manager
// expects Start to return promptly.
func (p *Program) Start(s service.Service) error {
	p.exit = make(chan struct{})
	go func() {
		defer close(p.exit)
		run()
	}()
	return nil
}

// Stop raises SIGTERM at the process so the shutdown manager drains
// in-flight builds, then waits for the run loop to finish.
func (p *Program) Stop(s service.Service) error {
	proc, err := os.FindProcess(os.Getpid())
	if err == nil {
		_ = proc.Signal(os.Interrupt)
	}

	select {
	case <-p.exit:
		return nil
	case <-time.After(90 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "PDFBackend",
		DisplayName: "Digital Collections PDF Backend",
		Description: "On-demand PDF generation and OCR for the digital collections repository",
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

// RunAsService runs the application under the Windows service control
// manager. Returns false when the process is interactive and should run
// in the foreground instead.
func RunAsService() (bool, error) {
	s, err := service.New(&Program{}, serviceConfig())
	if err != nil {
		return false, fmt.Errorf("failed to create service: %w", err)
	}

	if service.Interactive() {
		return false, nil
	}

	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// HandleServiceCommand dispatches install/uninstall/start/stop/restart/status
// subcommands. Returns true when a service command was handled and the
// process should exit without starting the server.
func HandleServiceCommand(args []string) bool {
	if len(args) < 2 {
		return false
	}

	s, err := service.New(&Program{}, serviceConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create service: %v\n", err)
		os.Exit(1)
	}

	switch args[1] {
	case "install":
		err = s.Install()
	case "uninstall", "remove":
		err = s.Uninstall()
	case "start":
		err = s.Start()
	case "stop":
		err = s.Stop()
	case "restart":
		err = s.Restart()
	case "status":
		status, statusErr := s.Status()
		if statusErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", statusErr)
			os.Exit(1)
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service is running")
		case service.StatusStopped:
			fmt.Println("Service is stopped")
		default:
			fmt.Println("Service status unknown")
		}
		return true
	case "help", "-h", "--help", "-help":
		printServiceUsage()
		return true
	default:
		return false
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Service %s completed\n", args[1])
	return true
}

func printServiceUsage() {
	fmt.Println("PDF Backend Service Management")
	fmt.Println()
	fmt.Println("Usage: pdf_backend.exe <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  install    Install the application as a Windows service")
	fmt.Println("  uninstall  Remove the Windows service (alias: remove)")
	fmt.Println("  start      Start the Windows service")
	fmt.Println("  stop       Stop the Windows service")
	fmt.Println("  restart    Restart the Windows service")
	fmt.Println("  status     Show the current service status")
	fmt.Println()
	fmt.Println("Run without arguments to start the server in foreground mode.")
}
