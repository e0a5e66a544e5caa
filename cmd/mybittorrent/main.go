package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/bencode"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/config"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/magnet"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/peering"
)

var logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func init() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = logLevel
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	logger := zap.L()

	if len(os.Args) < 2 {
		logger.Error("Usage: mybittorrent <command> [arguments]")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Environ())
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	level, err := cfg.Level()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	logLevel.SetLevel(level)

	client := peering.NewClient()
	command := os.Args[1]

	switch command {
	case "decode":
		if err := handleDecode(os.Args); err != nil {
			logger.Error("Failed to decode", zap.Error(err))
			os.Exit(1)
		}
	case "info":
		if err := handleInfo(os.Args); err != nil {
			logger.Error("Failed to get info", zap.Error(err))
			os.Exit(1)
		}
	case "peers":
		if err := handlePeers(cfg, client, os.Args); err != nil {
			logger.Error("Failed to get peers", zap.Error(err))
			os.Exit(1)
		}
	case "handshake":
		if err := handleHandshake(cfg, client, os.Args); err != nil {
			logger.Error("Failed to handshake", zap.Error(err))
			os.Exit(1)
		}
	case "magnet_parse":
		if err := handleMagnetParse(os.Args); err != nil {
			logger.Error("Failed to parse magnet link", zap.Error(err))
			os.Exit(1)
		}
	case "magnet_handshake":
		if err := handleMagnetHandshake(cfg, client, os.Args); err != nil {
			logger.Error("Failed to handshake", zap.Error(err))
			os.Exit(1)
		}
	default:
		logger.Error("Unknown command", zap.String("command", command))
		os.Exit(1)
	}
}

// Command handlers

func handleDecode(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: decode <bencoded-value>")
	}

	decoded, err := bencode.Decode([]byte(args[2]))
	if err != nil {
		return err
	}
	display, err := bencode.ToDisplay(decoded)
	if err != nil {
		return err
	}

	jsonOutput, err := json.Marshal(display)
	if err != nil {
		return err
	}
	fmt.Println(string(jsonOutput))
	return nil
}

func loadTorrent(path string) (*metainfo.Torrent, error) {
	fileContent, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read torrent file: %w", err)
	}

	torrent, err := metainfo.Load(fileContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent file: %w", err)
	}
	return torrent, nil
}

func handleInfo(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: info <torrent-file>")
	}

	torrent, err := loadTorrent(args[2])
	if err != nil {
		return err
	}

	hash, err := metainfo.HashInfo(&torrent.Info)
	if err != nil {
		return err
	}

	if err := torrent.Info.CheckPieceCount(); err != nil {
		zap.L().Warn("Inconsistent piece table", zap.Error(err))
	}

	fmt.Printf("Tracker URL: %s\n", torrent.Announce)
	fmt.Printf("Length: %d\n", torrent.Info.Length)
	fmt.Printf("Info Hash: %s\n", hash)
	fmt.Printf("Piece Length: %d\n", torrent.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, pieceHash := range torrent.Info.PieceHashes() {
		fmt.Println(pieceHash)
	}
	return nil
}

func handlePeers(cfg *config.Config, client *peering.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: peers <torrent-file>")
	}

	torrent, err := loadTorrent(args[2])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TrackerTimeout)
	defer cancel()

	peers, err := client.GetPeers(ctx, torrent)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		fmt.Println(peer)
	}
	return nil
}

func handleHandshake(cfg *config.Config, client *peering.Client, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: handshake <torrent-file> <peer-address>")
	}

	torrent, err := loadTorrent(args[2])
	if err != nil {
		return err
	}

	infoHash, err := metainfo.HashInfo(&torrent.Info)
	if err != nil {
		return fmt.Errorf("failed to calculate info hash: %w", err)
	}

	return handshake(cfg, client, args[3], infoHash)
}

func handleMagnetParse(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: magnet_parse <magnet-link>")
	}

	link, err := magnet.Parse(args[2])
	if err != nil {
		return fmt.Errorf("failed to parse magnet link: %w", err)
	}

	// At least one tracker is required
	if len(link.Trackers) == 0 {
		return fmt.Errorf("no trackers found in magnet link")
	}

	fmt.Printf("Tracker URL: %s\n", link.Trackers[0])
	fmt.Printf("Info Hash: %s\n", link.InfoHash)
	return nil
}

func handleMagnetHandshake(cfg *config.Config, client *peering.Client, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: magnet_handshake <magnet-link> <peer-address>")
	}

	link, err := magnet.Parse(args[2])
	if err != nil {
		return fmt.Errorf("failed to parse magnet link: %w", err)
	}

	return handshake(cfg, client, args[3], link.InfoHash)
}

func handshake(cfg *config.Config, client *peering.Client, peerAddr string, infoHash metainfo.Hash) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	session, err := client.Handshake(ctx, peerAddr, infoHash)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Peer ID: %s\n", session.PeerID)
	return nil
}
