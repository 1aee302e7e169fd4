package cache

import (
	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"go.uber.org/zap"
)

// TextureLookup caches QOI textures by asset id.
type TextureLookup struct {
	lookup[*gpu.Texture]
}

func NewTextureLookup(loader asset.Loader, log *zap.Logger) *TextureLookup {
	return &TextureLookup{lookup[*gpu.Texture]{
		kind: "texture",
		log:  log,
		load: func(w *jobs.Worker, d gpu.Device, id asset.AssetID) *jobs.OneshotReceiver[asset.Result[*gpu.Texture]] {
			return asset.LoadAsync(w, loader, id, func(b []byte) (*gpu.Texture, error) {
				img, err := asset.DecodeQOIBytes(b)
				if err != nil {
					return nil, err
				}
				return gpu.UploadTexture(d, id.String(), img)
			})
		},
		free: func(d gpu.Device, t *gpu.Texture) { t.Free(d) },
	}}
}

func (l *TextureLookup) Alloc(w *jobs.Worker, d gpu.Device, id asset.AssetID) *LookupID {
	return l.alloc(w, d, id)
}

func (l *TextureLookup) Get(id *LookupID) (*gpu.Texture, bool) {
	return l.get(id)
}

func (l *TextureLookup) FreeUnusedTextures(w *jobs.Worker, d gpu.Device) (int, error) {
	return l.freeUnused(w, d)
}

func (l *TextureLookup) ReimportEverything(w *jobs.Worker, d gpu.Device) {
	l.reimport(w, d)
}

func (l *TextureLookup) Free(w *jobs.Worker, d gpu.Device) {
	l.freeAll(w, d)
}

func (l *TextureLookup) Loaded() int {
	return l.loaded()
}
