// Command graphenginectl is an interactive debug client for a running
// graphengined server: it dials the Unix socket and lets an operator
// issue single commands by hand.
//
// Grounded on scm/prompt.go's Repl: a github.com/chzyer/
// readline loop with history, an interrupt prompt, and a recover-per-
// line guard so one bad command never kills the session.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/cuemby/graphengine/internal/engine"
	"github.com/cuemby/graphengine/internal/rpc"
)

const prompt = "\033[32mgraphengine>\033[0m "

func main() {
	socketPath := flag.String("socket", "./data/graphengine.sock", "path to the server's Unix-domain socket")
	flag.Parse()

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphenginectl:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := rpc.WriteFrame(conn, rpc.KindHello, rpc.HelloRequest{ProtocolVersion: rpc.ProtocolVersion}); err != nil {
		fmt.Fprintln(os.Stderr, "graphenginectl: hello failed:", err)
		os.Exit(1)
	}
	if _, _, err := rpc.ReadFrame(conn); err != nil {
		fmt.Fprintln(os.Stderr, "graphenginectl: hello failed:", err)
		os.Exit(1)
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       ".graphenginectl-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	var batchID uint64
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("error:", r)
				}
			}()
			runCommand(conn, line, &batchID)
		}()
	}
}

func runCommand(conn net.Conn, line string, batchID *uint64) {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "begin":
		send(conn, rpc.KindBeginBatch, nil)
		var resp rpc.BeginBatchResponse
		recv(conn, &resp)
		*batchID = resp.BatchID
		fmt.Println("batch", resp.BatchID, "opened")

	case "commit":
		var changed []string
		if len(fields) > 1 {
			changed = strings.Split(fields[1], ",")
		}
		send(conn, rpc.KindCommitBatch, rpc.CommitBatchRequest{BatchID: *batchID, ChangedFiles: changed})
		var resp rpc.CommitBatchResponse
		recv(conn, &resp)
		fmt.Printf("%+v\n", resp.Result)

	case "get":
		if len(fields) < 2 {
			fmt.Println("usage: get <semantic-id>")
			return
		}
		send(conn, rpc.KindGetNodeBySemanticID, rpc.GetNodeRequest{SemanticID: fields[1]})
		var resp rpc.GetNodeResponse
		recv(conn, &resp)
		if !resp.Found {
			fmt.Println("not found")
			return
		}
		fmt.Printf("%+v\n", resp.Node)

	case "neighbors":
		if len(fields) < 2 {
			fmt.Println("usage: neighbors <numeric-id>")
			return
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			fmt.Println("bad numeric id:", err)
			return
		}
		send(conn, rpc.KindNeighbors, rpc.NeighborsRequest{NumericID: id})
		var resp rpc.NeighborsResponse
		recv(conn, &resp)
		for _, n := range resp.Nodes {
			fmt.Printf("  %d  %s\n", n.NumericID, n.SemanticID)
		}

	case "stats":
		send(conn, rpc.KindStats, nil)
		var resp rpc.StatsResponse
		recv(conn, &resp)
		printStats(resp.Stats)

	case "ping":
		send(conn, rpc.KindPing, rpc.PingRequest{})
		recv(conn, &rpc.PingResponse{})
		fmt.Println("pong")

	default:
		fmt.Println("unknown command:", cmd)
	}
}

func printStats(s engine.Stats) {
	fmt.Printf("shards=%d nodes=%d edges=%d\n", s.ShardCount, s.NodeCount, s.EdgeCount)
}

func send(conn net.Conn, kind rpc.Kind, payload any) {
	if err := rpc.WriteFrame(conn, kind, payload); err != nil {
		panic(err)
	}
}

func recv(conn net.Conn, out any) {
	kind, body, err := rpc.ReadFrame(conn)
	if err != nil {
		panic(err)
	}
	if kind == rpc.KindError {
		var errResp rpc.ErrorResponse
		rpc.Decode(body, &errResp)
		panic(fmt.Sprintf("%s: %s", errResp.Kind, errResp.Message))
	}
	if out != nil {
		if err := rpc.Decode(body, out); err != nil {
			panic(err)
		}
	}
}
