package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL overlays a .tg.kdl document onto cfg. Unknown nodes are ignored
// with a warning so newer config files keep working with older binaries.
func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "search":
			for _, cn := range n.Children {
				applySearchNode(cfg, cn)
			}
		case "walk":
			for _, cn := range n.Children {
				if err := applyWalkNode(cfg, cn); err != nil {
					return err
				}
			}
		case "export":
			for _, cn := range n.Children {
				if nodeName(cn) == "chunk_bytes" {
					size, ok, err := sizeArg(cn)
					if err != nil {
						return err
					}
					if ok {
						cfg.Export.ChunkBytes = size
					}
				}
			}
		case "accelerator":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Accelerator.Enabled = b
					}
				case "command":
					assignSimpleString(cn, "command", func(v string) { cfg.Accelerator.Command = v })
				case "probe_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Accelerator.ProbeTimeoutMs = v
					}
				}
			}
		case "output":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "format":
					assignSimpleString(cn, "format", func(v string) { cfg.Output.Format = strings.ToLower(v) })
				case "with_filename":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Output.WithFilename = b
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				if nodeName(cn) == "debounce_ms" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		default:
			log.Printf("WARNING: unknown section '%s' in KDL config", nodeName(n))
		}
	}
	return nil
}

func applySearchNode(cfg *Config, cn *document.Node) {
	switch nodeName(cn) {
	case "ignore_case":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Search.IgnoreCase = b
		}
	case "smart_case":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Search.SmartCase = b
		}
	case "max_count":
		if v, ok := firstIntArg(cn); ok {
			cfg.Search.MaxCount = v
		}
	case "threads":
		if v, ok := firstIntArg(cn); ok {
			cfg.Search.Threads = v
		}
	}
}

func applyWalkNode(cfg *Config, cn *document.Node) error {
	switch nodeName(cn) {
	case "hidden":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Walk.Hidden = b
		}
	case "max_depth":
		if v, ok := firstIntArg(cn); ok {
			cfg.Walk.MaxDepth = v
		}
	case "respect_ignore":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Walk.RespectIgnore = b
		}
	case "follow_symlinks":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Walk.FollowSymlinks = b
		}
	case "skip_binary":
		if b, ok := firstBoolArg(cn); ok {
			cfg.Walk.SkipBinary = b
		}
	case "max_filesize":
		size, ok, err := sizeArg(cn)
		if err != nil {
			return err
		}
		if ok {
			cfg.Walk.MaxFileSize = size
		}
	case "glob":
		cfg.Walk.Globs = appendUnique(cfg.Walk.Globs, collectStringArgs(cn)...)
	case "ignore_file":
		cfg.Walk.IgnoreFiles = appendUnique(cfg.Walk.IgnoreFiles, collectStringArgs(cn)...)
	}
	return nil
}

// sizeArg reads a size given either as a byte count or as a string like "64MB".
func sizeArg(n *document.Node) (int64, bool, error) {
	if v, ok := firstIntArg(n); ok {
		return int64(v), true, nil
	}
	if s, ok := firstStringArg(n); ok {
		size, err := parseSize(s)
		if err != nil {
			return 0, false, fmt.Errorf("invalid size %q for '%s': %w", s, nodeName(n), err)
		}
		return size, true, nil
	}
	return 0, false, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs accepts both the inline form (glob "*.go" "*.md") and
// the block form (glob { "*.go"; "*.md" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

// ParseSize is exported for the CLI's --max-filesize and --chunk-bytes flags.
func ParseSize(s string) (int64, error) {
	return parseSize(s)
}
