// Package p2p owns the libp2p host and the two GossipSub topics (sync and
// presence). LAN peers are discovered over mDNS; cross-network peers via the
// configured bootstrap addresses.
package p2p

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/util"
)

func init() {
	// Silence noisy libp2p subsystems — dial failures and backoff errors
	// go to stderr by default and pollute terminal output.
	logging.SetLogLevel("swarm2", "error")
	logging.SetLogLevel("autonat", "warn")
}

type Node struct {
	Host host.Host
	ps   *pubsub.PubSub

	syncTopic *pubsub.Topic
	syncSub   *pubsub.Subscription
	presTopic *pubsub.Topic
	presSub   *pubsub.Subscription
}

type mdnsNotifee struct {
	h host.Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), util.DefaultConnectTimeout)
	defer cancel()
	_ = n.h.Connect(ctx, pi)
}

// loadOrCreateKey loads a persistent identity key from disk,
// or generates a new Ed25519 key and saves it on first run.
func loadOrCreateKey(keyFile string) (crypto.PrivKey, bool, error) {
	data, err := os.ReadFile(keyFile)
	if err == nil {
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err == nil {
			return priv, false, nil
		}
		log.Printf("WARNING: corrupt identity key at %s: %v (generating new key)", keyFile, err)
	}

	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, false, err
	}

	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, false, fmt.Errorf("marshal identity key: %w", err)
	}

	if dir := filepath.Dir(keyFile); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, false, fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := os.WriteFile(keyFile, raw, 0600); err != nil {
		return nil, false, fmt.Errorf("save identity key: %w", err)
	}

	return priv, true, nil
}

// New starts the libp2p host, mDNS discovery, and joins both topics.
// bootstrapAddrs are optional multiaddrs of peers to dial immediately
// (cross-LAN setups where mDNS cannot see the admin).
func New(ctx context.Context, listenPort int, keyFile, mdnsTag string, bootstrapAddrs []string) (*Node, error) {
	priv, isNew, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	if isNew {
		log.Printf("P2P: generated new identity key: %s", keyFile)
	} else {
		log.Printf("P2P: loaded identity key: %s", keyFile)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", listenPort)),
	)
	if err != nil {
		return nil, err
	}

	if mdnsTag == "" {
		mdnsTag = proto.MdnsTag
	}
	md := mdns.NewMdnsService(h, mdnsTag, &mdnsNotifee{h: h})
	if err := md.Start(); err != nil {
		_ = h.Close()
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	syncTopic, err := ps.Join(proto.SyncTopic)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	syncSub, err := syncTopic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	presTopic, err := ps.Join(proto.PresenceTopic)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	presSub, err := presTopic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	n := &Node{
		Host:      h,
		ps:        ps,
		syncTopic: syncTopic,
		syncSub:   syncSub,
		presTopic: presTopic,
		presSub:   presSub,
	}

	for _, s := range bootstrapAddrs {
		n.dialBootstrap(ctx, s)
	}

	return n, nil
}

func (n *Node) dialBootstrap(ctx context.Context, addr string) {
	a, err := ma.NewMultiaddr(addr)
	if err != nil {
		log.Printf("P2P: invalid bootstrap addr %q: %v", addr, err)
		return
	}
	pi, err := peer.AddrInfoFromP2pAddr(a)
	if err != nil {
		log.Printf("P2P: bootstrap addr %q has no peer component: %v", addr, err)
		return
	}
	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, util.DefaultConnectTimeout)
		defer cancel()
		if err := n.Host.Connect(dialCtx, *pi); err != nil {
			log.Printf("P2P: bootstrap dial %s failed: %v", pi.ID, err)
		}
	}()
}

func (n *Node) ID() string {
	return n.Host.ID().String()
}

// SyncChannel returns the joined sync topic and its subscription for the
// networked transport to wrap.
func (n *Node) SyncChannel() (*pubsub.Topic, *pubsub.Subscription) {
	return n.syncTopic, n.syncSub
}

// PublishPresence broadcasts a presence announcement.
func (n *Node) PublishPresence(ctx context.Context, b []byte) error {
	return n.presTopic.Publish(ctx, b)
}

// RunPresenceLoop delivers raw presence payloads from other peers to fn.
func (n *Node) RunPresenceLoop(ctx context.Context, fn func(data []byte)) {
	go func() {
		for {
			m, err := n.presSub.Next(ctx)
			if err != nil {
				return
			}
			if m.ReceivedFrom == n.Host.ID() {
				continue
			}
			fn(m.Data)
		}
	}()
}

// PresencePeers returns the peer IDs currently meshed on the presence topic.
// This is the transport-level membership snapshot the tracker reconciles the
// roster against.
func (n *Node) PresencePeers() []string {
	peers := n.presTopic.ListPeers()
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.String())
	}
	return out
}

// Online reports whether any peer is currently connected. With zero peers the
// networked path cannot deliver anything, so the engine runs in local mode.
func (n *Node) Online() bool {
	return len(n.Host.Network().Peers()) > 0
}

// LANAddr returns a non-loopback address string ("ip:port" of httpPort) other
// LAN devices can resolve, or "" when only loopback addresses exist. Used to
// build portable locators for locally ingested media.
func (n *Node) LANAddr(httpPort int) string {
	for _, a := range n.Host.Addrs() {
		ip, err := manet.ToIP(a)
		if err != nil {
			continue
		}
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			continue
		}
		return lanHostPort(ip, httpPort)
	}
	return ""
}

// lanHostPort formats an address other devices can dial. IPv6 literals need
// brackets or the resulting http locator will not parse.
func lanHostPort(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}

// WatchConnectivity polls host connectedness and invokes onChange when the
// online state flips. Polling keeps this independent of libp2p's event bus
// quirks; a 2s cadence is far below the presence TTL.
func (n *Node) WatchConnectivity(ctx context.Context, onChange func(online bool)) {
	go func() {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		last := n.Online()
		onChange(last)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cur := n.Online()
				if cur != last {
					last = cur
					if cur {
						log.Printf("P2P: network path up (%d peers)", len(n.Host.Network().Peers()))
					} else {
						log.Printf("P2P: network path down, local mode")
					}
					onChange(cur)
				}
			}
		}
	}()
}

func (n *Node) Close() error {
	n.syncSub.Cancel()
	n.presSub.Cancel()
	return n.Host.Close()
}
