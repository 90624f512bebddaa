package ibkr

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"

	"github.com/aristath/marketdata/config"
)

// IsAvailable reports whether the brokerage gateway answers on its
// configured URL. Any failure means unavailable, never an error.
func IsAvailable() bool {
	client := &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	resp, err := client.Get(strings.TrimRight(gatewayURL(), "/") + "/iserver/auth/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func gatewayURL() string {
	if u := os.Getenv(config.EnvIBKRGatewayURL); u != "" {
		return u
	}
	return config.DefaultIBKRGatewayURL
}
