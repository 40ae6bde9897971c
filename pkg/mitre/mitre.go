// Package mitre fetches the enterprise ATT&CK dataset and filters it to a
// curated subset of techniques relevant to Sentinel SOC detections. The raw
// STIX JSON is cached on disk with a 24-hour TTL.
package mitre

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const attackURL = "https://raw.githubusercontent.com/mitre-attack/attack-stix-data" +
	"/master/enterprise-attack/enterprise-attack.json"

const (
	cacheFilename = "enterprise-attack.json"
	cacheTTL      = 24 * time.Hour
)

// curatedTechniqueIDs spans the tactics Sentinel analytics most often map to.
var curatedTechniqueIDs = map[string]bool{
	// Initial Access
	"T1566": true, // Phishing
	"T1078": true, // Valid Accounts
	"T1190": true, // Exploit Public-Facing Application
	// Execution
	"T1059": true, // Command and Scripting Interpreter
	"T1204": true, // User Execution
	// Persistence
	"T1136": true, // Create Account
	"T1053": true, // Scheduled Task/Job
	"T1098": true, // Account Manipulation
	// Privilege Escalation
	"T1548": true, // Abuse Elevation Control Mechanism
	"T1134": true, // Access Token Manipulation
	// Defense Evasion
	"T1562": true, // Impair Defenses
	"T1070": true, // Indicator Removal
	// Credential Access
	"T1110": true, // Brute Force
	"T1003": true, // OS Credential Dumping
	"T1558": true, // Steal or Forge Kerberos Tickets
	// Lateral Movement
	"T1021": true, // Remote Services
	"T1570": true, // Lateral Tool Transfer
	// Collection / Exfiltration
	"T1005": true, // Data from Local System
	"T1567": true, // Exfiltration Over Web Service
	"T1041": true, // Exfiltration Over C2 Channel
	// Discovery
	"T1087": true, // Account Discovery
	"T1069": true, // Permission Groups Discovery
	// Impact
	"T1486": true, // Data Encrypted for Impact
	"T1489": true, // Service Stop
	// Command and Control
	"T1071": true, // Application Layer Protocol
}

// Technique is one curated ATT&CK technique.
type Technique struct {
	TechniqueID string   `json:"technique_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tactics     []string `json:"tactics"`
}

// Client downloads and caches ATT&CK data. An empty cacheDir disables the
// file cache.
type Client struct {
	url      string
	cacheDir string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(cacheDir string, logger *zap.Logger) *Client {
	return &Client{
		url:      attackURL,
		cacheDir: cacheDir,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger.Named("mitre"),
	}
}

// Fetch returns the curated techniques. Any failure degrades to an empty
// list with a warning so callers never block on ATT&CK availability.
func (c *Client) Fetch(ctx context.Context) []Technique {
	raw, err := c.loadSTIX(ctx)
	if err != nil {
		c.logger.Warn("failed to fetch ATT&CK techniques, returning empty list", zap.Error(err))
		return nil
	}
	techniques, err := parseTechniques(raw)
	if err != nil {
		c.logger.Warn("failed to parse ATT&CK data, returning empty list", zap.Error(err))
		return nil
	}
	return techniques
}

func (c *Client) loadSTIX(ctx context.Context) ([]byte, error) {
	if c.cacheDir != "" {
		path := filepath.Join(c.cacheDir, cacheFilename)
		if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) < cacheTTL {
			c.logger.Info("loading ATT&CK data from cache", zap.String("path", path))
			return os.ReadFile(path)
		}
	}

	c.logger.Info("downloading ATT&CK data", zap.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download ATT&CK data: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.cacheDir != "" {
		path := filepath.Join(c.cacheDir, cacheFilename)
		if err := os.MkdirAll(c.cacheDir, 0o755); err == nil {
			if err := os.WriteFile(path, raw, 0o644); err == nil {
				c.logger.Info("cached ATT&CK data", zap.String("path", path))
			} else {
				c.logger.Warn("failed to write ATT&CK cache", zap.Error(err))
			}
		}
	}
	return raw, nil
}

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type               string `json:"type"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	IsSubtechnique     bool   `json:"x_mitre_is_subtechnique"`
	ExternalReferences []struct {
		SourceName string `json:"source_name"`
		ExternalID string `json:"external_id"`
	} `json:"external_references"`
	KillChainPhases []struct {
		PhaseName string `json:"phase_name"`
	} `json:"kill_chain_phases"`
}

// parseTechniques filters the STIX bundle to curated top-level techniques.
func parseTechniques(raw []byte) ([]Technique, error) {
	var bundle stixBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decode STIX bundle: %w", err)
	}

	var techniques []Technique
	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" || obj.IsSubtechnique {
			continue
		}
		var attackID string
		for _, ref := range obj.ExternalReferences {
			if ref.SourceName == "mitre-attack" {
				attackID = ref.ExternalID
				break
			}
		}
		if !curatedTechniqueIDs[attackID] {
			continue
		}
		tactics := make([]string, 0, len(obj.KillChainPhases))
		for _, phase := range obj.KillChainPhases {
			tactics = append(tactics, phase.PhaseName)
		}
		techniques = append(techniques, Technique{
			TechniqueID: attackID,
			Name:        obj.Name,
			Description: obj.Description,
			Tactics:     tactics,
		})
	}
	return techniques, nil
}
