// rmicli connects to a FANUC RMI controller, runs the startup sequence,
// and prints a status snapshot every two seconds until interrupted. Each
// snapshot also enqueues a ReadCartesianPosition request; its reply is
// not printed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weldarc/rmi"
	"github.com/weldarc/rmi/internal/packet"
	"github.com/weldarc/rmi/internal/queue"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1", "Controller host or IP")
	portFlag := flag.Int("port", rmi.DefaultPort, "Controller RMI port")
	statusPortFlag := flag.Int("status-port", 0, "Optional secondary out-of-band status port (0 disables it)")
	pollFlag := flag.Duration("poll", rmi.DefaultPollPeriod, "Heartbeat/status-poll cadence")
	logLevelFlag := flag.String("log-level", "info", "Log level: error, warn, info, debug")
	connectTimeoutFlag := flag.Duration("connect-timeout", 10*time.Second, "Dial timeout")
	startupFlag := flag.Bool("startup", true, "Run the startup sequence after connecting")

	flag.Usage = printUsage
	flag.Parse()

	level, err := parseLogLevel(*logLevelFlag)
	if err != nil {
		log.Fatalf("rmicli: %v", err)
	}

	opts := []rmi.Option{
		rmi.WithPort(*portFlag),
		rmi.WithPollPeriod(*pollFlag),
		rmi.WithLogLevel(level),
	}
	if *statusPortFlag != 0 {
		opts = append(opts, rmi.WithStatusPort(*statusPortFlag))
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), *connectTimeoutFlag)
	defer cancelDial()

	driver, err := rmi.Connect(dialCtx, *addrFlag, opts...)
	if err != nil {
		log.Fatalf("rmicli: connect: %v", err)
	}
	defer driver.Close()

	logs := driver.Logs()
	defer logs.Close()
	go func() {
		for entry := range logs.Channel() {
			fmt.Fprintf(os.Stderr, "%s [%s] %s\n", entry.Time.Format(time.RFC3339), entry.Level, entry.Message)
		}
	}()

	if *startupFlag {
		startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
		err := driver.StartupSequence(startupCtx)
		cancelStartup()
		if err != nil {
			log.Fatalf("rmicli: startup sequence: %v", err)
		}
		fmt.Println("startup sequence complete, state:", driver.State())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("rmicli: shutting down")
			return
		case <-ticker.C:
			printSnapshot(driver)
		}
	}
}

func printSnapshot(driver *rmi.Driver) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := driver.GetStatus(ctx)
	if err != nil {
		fmt.Printf("state=%s get_status error: %v\n", driver.State(), err)
		return
	}
	fmt.Printf("state=%s servo_ready=%d tp_mode=%d motion_status=%d next_sequence_id=%d\n",
		driver.State(), status.ServoReady, status.TPMode, status.RMIMotionStatus, status.NextSequenceID)

	if _, err := driver.SendPacket(packet.NewReadCartesianPosition(), queue.High); err != nil {
		fmt.Printf("read_cartesian_position enqueue error: %v\n", err)
	}
}

func parseLogLevel(s string) (rmi.LogLevel, error) {
	switch s {
	case "error":
		return rmi.LogError, nil
	case "warn":
		return rmi.LogWarn, nil
	case "info":
		return rmi.LogInfo, nil
	case "debug":
		return rmi.LogDebug, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func printUsage() {
	fmt.Println("rmicli - FANUC RMI controller inspector")
	fmt.Println("Usage:")
	fmt.Println("  rmicli -addr <host> [-port 18735] [-status-port 0] [-poll 100ms] [-log-level info]")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  rmicli -addr 192.168.1.50 -log-level debug")
}
