// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は画像プロキシが投稿画像を取得する際のSSRF防止機能を定義する。
type SSRFGuardService interface {
	// NewSafeClient は内部ネットワークへの接続をDialerレベルで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// NewTrustedClient は信頼済みオリジン向けのHTTPクライアントを生成する。
	// リダイレクトは信頼済みオリジン内に限って追従する。
	NewTrustedClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	ValidateURL(rawURL string) error

	// IsTrusted はURLがバックエンドAPIと同じオリジンかを判定する。
	// バックエンドは学内のプライベートネットワーク上にあることが多い。
	IsTrusted(rawURL string) bool
}

// ErrBlockedDestination は内部ネットワーク宛てのURLを表す。
var ErrBlockedDestination = errors.New("blocked destination")

// ErrResponseTooLarge は応答本文がmaxResponseSizeを超えたことを表す。
var ErrResponseTooLarge = errors.New("response body too large")

const maxRedirects = 5

// blockedPrefixes は信頼済みオリジン以外で拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータを含む
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ssrfGuard はSSRFGuardServiceの実装。
// trustedは正規化したオリジン（scheme://host:port）の集合。
type ssrfGuard struct {
	trusted map[string]bool
}

// compile-time interface check
var _ SSRFGuardService = (*ssrfGuard)(nil)

// NewSSRFGuard はSSRFGuardを生成する。
// trustedOriginsにはバックエンドのベースURLを渡す。解釈できない値は無視される。
func NewSSRFGuard(trustedOrigins ...string) *ssrfGuard {
	g := &ssrfGuard{trusted: make(map[string]bool)}
	for _, raw := range trustedOrigins {
		if u, err := parseHTTPURL(raw); err == nil {
			g.trusted[origin(u)] = true
		}
	}
	return g
}

// IsTrusted はURLが信頼済みオリジンに属するかを判定する。
func (g *ssrfGuard) IsTrusted(rawURL string) bool {
	u, err := parseHTTPURL(rawURL)
	return err == nil && g.trusted[origin(u)]
}

// NewSafeClient はsafeurlによるSSRF防止付きHTTPクライアントを生成する。
// 接続先の検証はDNS解決後に行われるため、DNS再バインディングも防げる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	client := safeurl.Client(config).Client
	client.Transport = limitResponses(client.Transport, maxResponseSize)
	return client
}

// NewTrustedClient は信頼済みオリジン用のHTTPクライアントを生成する。
// 信頼済みオリジンはプライベートアドレスにあり得るため、Dialerでは検査せず
// リダイレクト先を毎回IsTrustedで検証する。
func (g *ssrfGuard) NewTrustedClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{
		Timeout:       timeout,
		Transport:     limitResponses(http.DefaultTransport, maxResponseSize),
		CheckRedirect: g.checkTrustedRedirect,
	}
}

func (g *ssrfGuard) checkTrustedRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !g.IsTrusted(req.URL.String()) {
		return fmt.Errorf("%w: redirect to %s", ErrBlockedDestination, req.URL.Redacted())
	}
	return nil
}

// limitResponses は応答本文をmaxバイトまでに制限するRoundTripperを返す。max<=0なら制限しない。
func limitResponses(base http.RoundTripper, max int64) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if max <= 0 {
		return base
	}
	return &limitedTransport{base: base, max: max}
}

type limitedTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.max {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, resp.ContentLength)
	}
	resp.Body = &limitedBody{ReadCloser: resp.Body, max: t.max}
	return resp, nil
}

// limitedBody はContent-Lengthのない応答でも上限超過を検出する。
type limitedBody struct {
	io.ReadCloser
	max  int64
	read int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.read > b.max {
		return 0, ErrResponseTooLarge
	}
	n, err := b.ReadCloser.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		return n - int(b.read-b.max), ErrResponseTooLarge
	}
	return n, err
}

// ValidateURL はURLの安全性を静的に検証する。
// 信頼済みオリジンはスキームとホストの検証のみで通過する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if g.trusted[origin(u)] {
		return nil
	}

	host := u.Hostname()
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: host %s", ErrBlockedDestination, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && isBlockedAddr(addr) {
		return fmt.Errorf("%w: address %s", ErrBlockedDestination, addr)
	}
	return nil
}

// parseHTTPURL はhttp/httpsの絶対URLのみを受け付ける。
func parseHTTPURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("disallowed scheme: %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}
	return u, nil
}

// origin はURLをscheme://host:portに正規化する。ポート省略時は既定ポートを補う。
func origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	return scheme + "://" + net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}

// isBlockedAddr はアドレスが拒否範囲に含まれるかを判定する。IPv4射影アドレスも対象。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
