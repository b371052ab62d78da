// Command arenacache-cli sends commands to an arenacache server over the
// binary framing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raniellyferreira/arenacache/client"
	"github.com/raniellyferreira/arenacache/protocol"
)

func usage() {
	fmt.Println("arenacache command line client")
	fmt.Println("==============================")
	fmt.Println("Usage: arenacache-cli [--addr=host:port] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ping")
	fmt.Println("  put <key> <value> [ttl]   ttl is a Go duration, e.g. 30s")
	fmt.Println("  get <key>")
	fmt.Println("  del <key>")
	fmt.Println("  stats")
	fmt.Println("  diff <ref host:port> <sut host:port>")
	fmt.Println("")
	fmt.Println("Example:")
	fmt.Println("  arenacache-cli --addr=localhost:7379 put greeting hello 1m")
}

func main() {
	var addr = flag.String("addr", "localhost:7379", "Server address (host:port)")
	var timeout = flag.Duration("timeout", 5*time.Second, "Connect and read timeout")
	var helpFlag = flag.Bool("help", false, "Show help message")

	flag.Parse()
	args := flag.Args()

	if *helpFlag || len(args) == 0 {
		usage()
		os.Exit(0)
	}

	opts := []client.Option{
		client.WithConnectTimeout(*timeout),
		client.WithReadTimeout(*timeout),
	}

	if args[0] == "diff" {
		if len(args) != 3 {
			usage()
			os.Exit(2)
		}
		os.Exit(diff(args[1], args[2], opts))
	}

	c, err := client.Dial(*addr, opts...)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer c.Close()

	if err := runCommand(c, args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(c *client.Client, args []string) error {
	switch args[0] {
	case "ping":
		if err := c.Ping(); err != nil {
			return err
		}
		fmt.Println("PONG")
	case "put", "set":
		if len(args) < 3 || len(args) > 4 {
			return fmt.Errorf("usage: put <key> <value> [ttl]")
		}
		var ttl time.Duration
		if len(args) == 4 {
			d, err := time.ParseDuration(args[3])
			if err != nil {
				return fmt.Errorf("invalid ttl: %w", err)
			}
			ttl = d
		}
		if err := c.Put([]byte(args[1]), []byte(args[2]), ttl); err != nil {
			return err
		}
		fmt.Println("OK")
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := c.Get([]byte(args[1]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		fmt.Printf("%q\n", v)
	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: del <key>")
		}
		deleted, err := c.Del([]byte(args[1]))
		if err != nil {
			return err
		}
		if deleted {
			fmt.Println("(integer) 1")
		} else {
			fmt.Println("(integer) 0")
		}
	case "stats":
		report, err := c.Stats()
		if err != nil {
			return err
		}
		os.Stdout.Write(report.AppendText(nil))
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func fetchStats(addr string, opts []client.Option) (*protocol.StatsReport, error) {
	c, err := client.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()
	return c.Stats()
}
