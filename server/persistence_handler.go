package server

import (
	"errors"
	"net/http"
	"strings"

	"RPGMixer/core/mixer"
	"RPGMixer/core/playback"
	"RPGMixer/logger"
	"RPGMixer/model"
	"RPGMixer/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// PersistenceHandler serves tracks, presets, settings and playlist orders.
// Writes are mirrored into the in-process mixer when there is one.
type PersistenceHandler struct {
	tracks         repository.TrackRepository
	presets        repository.PresetRepository
	settings       repository.SettingsRepository
	orders         repository.OrderRepository
	defaultContext string
	mixer          *mixer.Mixer
}

// NewPersistenceHandler 创建持久化处理器, m 可以为 nil
func NewPersistenceHandler(tracks repository.TrackRepository, presets repository.PresetRepository,
	settings repository.SettingsRepository, orders repository.OrderRepository,
	defaultContext string, m *mixer.Mixer) *PersistenceHandler {
	return &PersistenceHandler{
		tracks:         tracks,
		presets:        presets,
		settings:       settings,
		orders:         orders,
		defaultContext: defaultContext,
		mixer:          m,
	}
}

// GetTracksHandler 获取全部曲目
func (h *PersistenceHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.List(r.Context())
	if err != nil {
		logger.Error("[Tracks] 查询曲目失败", logger.ErrorField(err))
		http.Error(w, "Failed to list tracks", http.StatusInternalServerError)
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler 获取单个曲目
func (h *PersistenceHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, err := h.tracks.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logger.Error("[Tracks] 查询曲目失败", logger.ErrorField(err))
		http.Error(w, "Failed to get track", http.StatusInternalServerError)
		return
	}
	if track == nil {
		http.Error(w, repository.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func validateTrack(t *model.Track) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(t.URL) == "" {
		return errors.New("url is required")
	}
	typ, err := model.ParseTrackType(string(t.Type))
	if err != nil {
		return err
	}
	t.Type = typ
	if t.Icon != "" {
		if _, ok := model.LookupIcon(t.Icon); !ok {
			t.Icon = ""
		}
	}
	return nil
}

// CreateTrackHandler 新增或覆盖曲目
func (h *PersistenceHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var track model.Track
	if !decodeJSON(w, r, &track) {
		return
	}
	if err := validateTrack(&track); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if err := h.tracks.Save(r.Context(), &track); err != nil {
		logger.Error("[Tracks] 保存曲目失败", logger.ErrorField(err), logger.String("trackId", track.ID))
		http.Error(w, "Failed to save track", http.StatusInternalServerError)
		return
	}
	logger.Info("[Tracks] 曲目已保存", logger.String("trackId", track.ID), logger.String("name", track.Name))
	h.syncCatalog(r)
	writeJSON(w, http.StatusCreated, track)
}

// DeleteTrackHandler 删除曲目
func (h *PersistenceHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.tracks.Delete(r.Context(), id); err != nil {
		logger.Error("[Tracks] 删除曲目失败", logger.ErrorField(err), logger.String("trackId", id))
		http.Error(w, "Failed to delete track", http.StatusInternalServerError)
		return
	}
	h.syncCatalog(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PersistenceHandler) syncCatalog(r *http.Request) {
	if h.mixer == nil {
		return
	}
	tracks, err := h.tracks.List(r.Context())
	if err != nil {
		logger.Warn("[Tracks] 同步曲目到混音器失败", logger.ErrorField(err))
		return
	}
	if err := h.mixer.SetCatalog(tracks); err != nil {
		logger.Warn("[Tracks] 同步曲目到混音器失败", logger.ErrorField(err))
	}
}

// GetPresetsHandler 获取全部预设
func (h *PersistenceHandler) GetPresetsHandler(w http.ResponseWriter, r *http.Request) {
	presets, err := h.presets.List(r.Context())
	if err != nil {
		logger.Error("[Presets] 查询预设失败", logger.ErrorField(err))
		http.Error(w, "Failed to list presets", http.StatusInternalServerError)
		return
	}
	if presets == nil {
		presets = []model.AmbiencePreset{}
	}
	writeJSON(w, http.StatusOK, presets)
}

// SavePresetHandler 按 id 新增或覆盖预设
func (h *PersistenceHandler) SavePresetHandler(w http.ResponseWriter, r *http.Request) {
	var preset model.AmbiencePreset
	if !decodeJSON(w, r, &preset) {
		return
	}
	preset.Name = strings.TrimSpace(preset.Name)
	if preset.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if preset.ID == "" {
		preset.ID = uuid.NewString()
	}
	if preset.Tracks == nil {
		preset.Tracks = model.PresetTrackList{}
	}
	if err := h.presets.Save(r.Context(), &preset); err != nil {
		logger.Error("[Presets] 保存预设失败", logger.ErrorField(err), logger.String("presetId", preset.ID))
		http.Error(w, "Failed to save preset", http.StatusInternalServerError)
		return
	}
	if h.mixer != nil {
		p := preset.Clone()
		h.mixer.Post(func(s *playback.Store) { s.UpsertPreset(p) })
	}
	writeJSON(w, http.StatusOK, preset)
}

// DeletePresetHandler 删除预设
func (h *PersistenceHandler) DeletePresetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.presets.Delete(r.Context(), id); err != nil {
		logger.Error("[Presets] 删除预设失败", logger.ErrorField(err), logger.String("presetId", id))
		http.Error(w, "Failed to delete preset", http.StatusInternalServerError)
		return
	}
	if h.mixer != nil {
		h.mixer.Post(func(s *playback.Store) { s.DropPreset(id) })
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettingsHandler 获取设置，未保存过时返回默认值
func (h *PersistenceHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		logger.Error("[Settings] 查询设置失败", logger.ErrorField(err))
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	if s == nil {
		d := model.DefaultSettings(h.defaultContext)
		s = &d
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveSettingsHandler 保存设置
func (h *PersistenceHandler) SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var s model.Settings
	if !decodeJSON(w, r, &s) {
		return
	}
	if s.MasterVolume < 0 || s.MasterVolume > 100 {
		http.Error(w, "masterVolume must be within 0..100", http.StatusBadRequest)
		return
	}
	s.ID = model.SettingsRowID
	if err := h.settings.Save(r.Context(), &s); err != nil {
		logger.Error("[Settings] 保存设置失败", logger.ErrorField(err))
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetOrdersHandler 获取全部播放列表顺序
func (h *PersistenceHandler) GetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.All(r.Context())
	if err != nil {
		logger.Error("[Orders] 查询播放顺序失败", logger.ErrorField(err))
		http.Error(w, "Failed to load playlist orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = model.PlaylistOrders{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// SaveOrderHandler 保存单个播放列表顺序
func (h *PersistenceHandler) SaveOrderHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var ids []string
	if !decodeJSON(w, r, &ids) {
		return
	}
	if ids == nil {
		ids = []string{}
	}
	if err := h.orders.Save(r.Context(), key, ids); err != nil {
		logger.Error("[Orders] 保存播放顺序失败", logger.ErrorField(err), logger.String("key", key))
		http.Error(w, "Failed to save playlist order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{key: ids})
}
