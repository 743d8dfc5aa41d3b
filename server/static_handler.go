package server

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"RPGMixer/logger"
	"RPGMixer/storage"
)

// AssetHandler 处理 MinIO 音频文件请求，支持 Range
type AssetHandler struct {
	store *storage.Minio
}

// NewAssetHandler 创建 AssetHandler 实例
func NewAssetHandler(store *storage.Minio) *AssetHandler {
	return &AssetHandler{store: store}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, storage.ErrNotInitialized.Error(), http.StatusInternalServerError)
		return
	}
	key := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(r.URL.Path, "/assets/")), "/")
	if key == "" {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	object, info, err := h.store.Get(ctx, key)
	if err != nil {
		logger.Debug("asset not found", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", storage.ContentType(key))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, key, info.LastModified, object)
}

// localAssets serves the asset tree straight from disk.
func localAssets(dir string) http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(http.Dir(dir)))
}
