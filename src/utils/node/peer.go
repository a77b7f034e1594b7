package node

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

var ErrInvalidPeer = errors.New("invalid peer address")

// Endpoint the node connects to
type TrustedPeer struct {
	Host string

	// Zero means the network's default port
	Port uint16
}

func ParseTrustedPeer(s string) (peer TrustedPeer, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return peer, ErrInvalidPeer
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port
		return TrustedPeer{Host: strings.Trim(s, "[]")}, nil
	}
	if host == "" {
		return peer, ErrInvalidPeer
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return peer, ErrInvalidPeer
	}

	return TrustedPeer{Host: host, Port: uint16(p)}, nil
}

// Address with the port filled in
func (self TrustedPeer) Address(defaultPort string) string {
	port := defaultPort
	if self.Port != 0 {
		port = strconv.Itoa(int(self.Port))
	}
	return net.JoinHostPort(self.Host, port)
}

func (self TrustedPeer) String() string {
	if self.Port == 0 {
		return self.Host
	}
	return self.Address("")
}

// Peers without duplicates, in insertion order
type TrustedPeerSet struct {
	peers []TrustedPeer
	seen  map[TrustedPeer]struct{}
}

func NewTrustedPeerSet(peers ...TrustedPeer) *TrustedPeerSet {
	self := &TrustedPeerSet{seen: make(map[TrustedPeer]struct{})}
	self.Add(peers...)
	return self
}

func (self *TrustedPeerSet) Add(peers ...TrustedPeer) {
	for _, peer := range peers {
		peer.Host = strings.ToLower(peer.Host)
		if _, ok := self.seen[peer]; ok {
			continue
		}
		self.seen[peer] = struct{}{}
		self.peers = append(self.peers, peer)
	}
}

func (self *TrustedPeerSet) Len() int {
	if self == nil {
		return 0
	}
	return len(self.peers)
}

func (self *TrustedPeerSet) Peers() []TrustedPeer {
	if self == nil {
		return nil
	}
	return append([]TrustedPeer(nil), self.peers...)
}

// Host:port of every peer
func (self *TrustedPeerSet) Addresses(defaultPort string) (out []string) {
	for _, peer := range self.Peers() {
		out = append(out, peer.Address(defaultPort))
	}
	return
}
