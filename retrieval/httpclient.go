package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/judfetch/config"
	"golang.org/x/time/rate"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPClient returns a client that presents a Chrome TLS fingerprint.
// proxy may be empty.
func NewHTTPClient(timeout time.Duration, proxy string) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// Downloader issues paced artifact GETs, each with a user agent drawn from
// the pool independently of any browsing session.
type Downloader struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	UserAgents config.UserAgentPool
	Referer    string
	MaxBytes   int64
}

// NewDownloader builds a Downloader from the retrieval settings.
func NewDownloader(cfg config.RetrievalConfig, proxy, referer string, pool config.UserAgentPool) *Downloader {
	limit := rate.Inf
	if cfg.DownloadsPerSecond > 0 {
		limit = rate.Limit(cfg.DownloadsPerSecond)
	}
	return &Downloader{
		Client:     NewHTTPClient(cfg.HTTPTimeout, proxy),
		Limiter:    rate.NewLimiter(limit, max(cfg.DownloadBurst, 1)),
		UserAgents: pool,
		Referer:    referer,
		MaxBytes:   cfg.MaxArtifactBytes,
	}
}

// Get downloads url. Only a 200 response is a success.
func (d *Downloader) Get(ctx context.Context, url string) ([]byte, error) {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgents.Pick())
	req.Header.Set("Accept", "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")
	if d.Referer != "" {
		req.Header.Set("Referer", d.Referer)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	limit := d.MaxBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("artifact exceeds %d bytes", limit)
	}
	return body, nil
}
