// Package media holds the playable source references handed to players.
//
// A source is created for every uploaded file and every enhanced result. Sources are
// scarce: whoever supersedes or unmounts one must Release it.
package media

import (
	"context"

	"github.com/contentenhancer/web/internal/model"
)

// DownloadFileName is the name the enhanced recording is saved under. The extension is
// always .wav even when the backend returns another encoding.
const DownloadFileName = "enhanced_audio.wav"

// Store creates and releases playable sources
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (*model.Source, error)
	Release(ctx context.Context, id string)
	Driver() string
}
