package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"groupchat/internal/coordinator"
	"groupchat/internal/logger"
	"groupchat/internal/peer"
	"groupchat/internal/room"
)

func main() {
	username := flag.String("username", "", "display name to announce to other peers")
	unicastPort := flag.Uint("unicast-port", 9000, "UDP port every peer binds for unicast traffic")
	multicastPort := flag.Uint("multicast-port", 9001, "UDP port used for room multicast groups")
	ackInterval := flag.Duration("ack-interval", time.Second, "interval between retransmits for an unacked message")
	shutdownTimeout := flag.Duration("shutdown-timeout", 5*time.Second, "how long to wait for leave-network acks before shutting down anyway")
	logLevel := flag.String("log-level", "INFO", "minimum log level: DEBUG, INFO, WARN, ERROR")
	flag.Parse()

	if *username == "" {
		exit("Error: -username is required\n")
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		exit("Error: %v\n", err)
	}

	c, err := coordinator.Start(context.Background(), coordinator.Config{
		Username:        *username,
		UnicastPort:     validatePort(*unicastPort, "unicast-port"),
		MulticastPort:   validatePort(*multicastPort, "multicast-port"),
		AckInterval:     *ackInterval,
		ShutdownTimeout: *shutdownTimeout,
		Log:             logger.New(level),
	})
	if err != nil {
		exit("Failed to start: %v\n", err)
	}

	fmt.Printf("groupchat started as %s\n", c.Self().String())
	fmt.Println("commands: discover, create <name> <peer-index-list>, join <room-name>, send <text>, delete <room-name>, leave <room-name>, list peers, list rooms, quit")

	go printNotifications(c)
	runREPL(c)

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		exit("Error during shutdown: %v\n", err)
	}
}

func printNotifications(c *coordinator.Coordinator) {
	for msg := range c.Notifications {
		fmt.Printf("\n* %s\n> ", msg)
	}
}

func runREPL(c *coordinator.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "quit" {
			return
		}
		dispatch(c, line)
		fmt.Print("> ")
	}
}

func dispatch(c *coordinator.Coordinator, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "discover":
		c.DiscoverNewPeers()
		fmt.Println("discovery ping sent")

	case "create":
		handleCreate(c, fields[1:])

	case "join":
		handleJoin(c, fields[1:])

	case "send":
		handleSend(c, strings.TrimSpace(strings.TrimPrefix(line, "send")))

	case "delete":
		handleDelete(c, fields[1:])

	case "leave":
		handleLeave(c, fields[1:])

	case "list":
		handleList(c, fields[1:])

	default:
		fmt.Printf("unrecognized command %q\n", fields[0])
	}
}

func handleCreate(c *coordinator.Coordinator, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: create <name> <peer-index-list>")
		return
	}
	name := args[0]
	peers := c.ListPeers()
	sortPeers(peers)

	var selected []uuid.UUID
	for _, idxStr := range strings.Split(args[1], ",") {
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(peers) {
			fmt.Printf("invalid peer index %q\n", idxStr)
			return
		}
		selected = append(selected, peers[idx].ID)
	}

	r, err := c.CreateRoom(name, selected)
	if err != nil {
		fmt.Printf("failed to create room: %v\n", err)
		return
	}
	fmt.Printf("created room %q with %d member(s)\n", r.Name, len(r.Members))
}

func handleJoin(c *coordinator.Coordinator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: join <room-name>")
		return
	}
	if err := c.JoinRoom(args[0]); err != nil {
		reportRoomNameError(args[0], err)
		return
	}
	fmt.Printf("now viewing room %q\n", args[0])
}

func handleSend(c *coordinator.Coordinator, text string) {
	if text == "" {
		fmt.Println("usage: send <text>")
		return
	}
	if err := c.SendRoomText(text); err != nil {
		fmt.Printf("failed to send: %v\n", err)
	}
}

func handleDelete(c *coordinator.Coordinator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <room-name>")
		return
	}
	r, err := c.GetRoomByName(args[0])
	if err != nil {
		reportRoomNameError(args[0], err)
		return
	}
	if err := c.DeleteCreatedRoom(r); err != nil {
		fmt.Printf("failed to delete room: %v\n", err)
		return
	}
	fmt.Printf("deleted room %q\n", args[0])
}

func handleLeave(c *coordinator.Coordinator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: leave <room-name>")
		return
	}
	if err := c.LeaveRoom(args[0]); err != nil {
		reportRoomNameError(args[0], err)
		return
	}
}

func handleList(c *coordinator.Coordinator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: list peers | list rooms")
		return
	}
	switch args[0] {
	case "peers":
		peers := c.ListPeers()
		sortPeers(peers)
		for i, p := range peers {
			fmt.Printf("  [%d] %s\n", i, p.String())
		}
	case "rooms":
		for _, r := range sortedRooms(c.ListRooms()) {
			fmt.Printf("  %s (%d members)\n", r.Name, len(r.Members))
		}
	default:
		fmt.Println("usage: list peers | list rooms")
	}
}

func reportRoomNameError(name string, err error) {
	if ambiguous, ok := err.(*coordinator.SameRoomNameError); ok {
		fmt.Printf("%q matches more than one room:\n", name)
		for _, r := range ambiguous.Candidates() {
			fmt.Printf("  %s\n", r.ID)
		}
		return
	}
	fmt.Printf("room %q: %v\n", name, err)
}

func sortPeers(peers []peer.Peer) {
	sort.Slice(peers, func(i, j int) bool { return peers[i].Username < peers[j].Username })
}

func sortedRooms(rooms []room.Room) []room.Room {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

func validatePort(port uint, name string) uint16 {
	if port == 0 || port > 65535 {
		exit("Error: invalid -%s value: %d\n", name, port)
	}
	return uint16(port)
}

func exit(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
	os.Exit(1)
}
