// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// DefaultFile is the commented configuration written by "config init".
// It must stay loadable by the strict decoder.
const DefaultFile = `# nebula playout configuration.
# Every key may be omitted; the values below are the defaults.
# Environment variables prefixed NEBULA_ override the global keys.

logLevel: info
logService: nebula
dataDir: /var/lib/nebula

store:
  # sqlite keeps rundown.sqlite under path (default: dataDir); memory is
  # for testing.
  backend: sqlite
  # seed: /etc/nebula/rundown.yaml

ops:
  listenAddr: ":9090"
  readTimeout: 5s
  writeTimeout: 10s
  # requests per minute per client, 0 disables
  rateLimit: 120

notify:
  # memory, redis or mqtt
  backend: memory
  # status messages per second and channel
  maxRate: 3
  publishTimeout: 500ms
  redis:
    addr: 127.0.0.1:6379
    channel: nebula
  mqtt:
    broker: tcp://127.0.0.1:1883
    clientID: nebula-playout
    topicPrefix: nebula
    qos: 0

telemetry:
  enabled: false
  # grpc, http or noop
  exporter: grpc
  endpoint: localhost:4317
  samplingRate: 1.0

cache:
  # memory, redis or none
  backend: memory
  assetTTL: 30s
  statusTTL: 5s

channels:
  - id: 1
    name: main
    device:
      # casparcg or softplayer
      kind: casparcg
      host: 127.0.0.1
      amcpPort: 5250
      oscPort: 6250
      channel: 1
      layer: 10
      commandTimeout: 5s
      pollInterval: 200ms
    fps: 25
    dayStart: "06:00"
    liveSource: DECKLINK 1
    liveProducer: decklink
    plugins: [asrun, cuefirst]
    # skipWhen: 'asset.meta.qc == "failed"'
    stallGrace: 3s
    recoverOnStart: true
`

// WriteDefault writes DefaultFile to path atomically. An existing file is
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.WriteString(DefaultFile); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}
