package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	errNoPEMBlock   = errors.New("no PEM block in certificate file")
	errNoCommonName = errors.New("certificate has no CN")
)

// applyRuntimeValidation rewrites derived settings once every source is merged
func applyRuntimeValidation(cfg *Config) error {
	if err := applyTopicPrefix(cfg); err != nil {
		return err
	}
	cfg.Runtime.Subscribe = dedupeTopics(cfg.Runtime.Subscribe)
	return nil
}

// applyTopicPrefix scopes the tunnel topics and the bridge prefix under the
// client certificate CN so broker ACLs keyed on the CN admit them
func applyTopicPrefix(cfg *Config) error {
	if !cfg.MQTT.UseCertCNPrefix || cfg.MQTT.ClientCert == "" {
		return nil
	}
	cn, err := extractCNFromCertFile(cfg.MQTT.ClientCert)
	if err != nil {
		return fmt.Errorf("failed to extract CN from certificate: %w", err)
	}
	cfg.MQTT.TxTopic = prefixTopic(cn, cfg.MQTT.TxTopic)
	cfg.MQTT.RxTopic = prefixTopic(cn, cfg.MQTT.RxTopic)
	cfg.MQTT.BridgePrefix = prefixTopic(cn, cfg.MQTT.BridgePrefix)
	return nil
}

func prefixTopic(cn, topic string) string {
	topic = strings.TrimPrefix(topic, "/")
	if topic == "" {
		return cn
	}
	return cn + "/" + topic
}

// dedupeTopics keeps the first occurrence of each topic; a repeated topic
// would otherwise get every subscriber attached twice
func dedupeTopics(topics []string) []string {
	if len(topics) < 2 {
		return topics
	}
	seen := make(map[string]struct{}, len(topics))
	out := topics[:0]
	for _, t := range topics {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// extractCNFromCertFile returns the subject CN of the first PEM certificate in certPath
func extractCNFromCertFile(certPath string) (string, error) {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 - certPath is from config, not user input
	if err != nil {
		return "", fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", errNoPEMBlock
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse certificate: %w", err)
	}
	if cert.Subject.CommonName == "" {
		return "", errNoCommonName
	}
	return cert.Subject.CommonName, nil
}
