package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the content-addressed disk cache shared by enhancement and
// asset generation. Keys are hashes of the generation inputs, so two
// writers racing on one key can only write identical content and
// last-writer-wins is safe. Entries become visible via rename, readers
// never observe partial files.
type Store struct {
	dir    string
	logger func(string)
}

// NewStore creates the cache directories under dir.
func NewStore(dir string, logger func(string)) (*Store, error) {
	for _, sub := range []string{"assets", "enhance"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// Key hashes the given parts into a cache key. Parts are NUL-separated
// so adjacent fields cannot collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type textEntry struct {
	ProviderID string `json:"provider_id"`
	Text       string `json:"text"`
}

// LookupText returns a cached enhancement result.
func (s *Store) LookupText(key string) (text, providerID string, ok bool) {
	data, err := os.ReadFile(s.textPath(key))
	if err != nil {
		return "", "", false
	}
	var entry textEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.log(fmt.Sprintf("[CACHE] Dropping corrupt text entry %s: %v", key[:12], err))
		return "", "", false
	}
	return entry.Text, entry.ProviderID, true
}

// SaveText stores an enhancement result under its content key.
func (s *Store) SaveText(key, providerID, text string) error {
	data, err := json.Marshal(textEntry{ProviderID: providerID, Text: text})
	if err != nil {
		return err
	}
	return s.writeAtomic(s.textPath(key), data)
}

// AssetInfo describes a cached asset alongside its bytes.
type AssetInfo struct {
	ProviderID string `json:"provider_id"`
	MimeType   string `json:"mime_type"`
}

// LookupAsset returns a cached generated asset and where it lives.
func (s *Store) LookupAsset(key string) (path string, data []byte, info AssetInfo, ok bool) {
	metaData, err := os.ReadFile(s.assetMetaPath(key))
	if err != nil {
		return "", nil, AssetInfo{}, false
	}
	if err := json.Unmarshal(metaData, &info); err != nil {
		return "", nil, AssetInfo{}, false
	}
	path = s.assetPath(key, info.MimeType)
	data, err = os.ReadFile(path)
	if err != nil {
		return "", nil, AssetInfo{}, false
	}
	return path, data, info, true
}

// SaveAsset stores generated asset bytes plus a small sidecar recording
// which provider produced them. Returns the asset file path.
func (s *Store) SaveAsset(key string, data []byte, mimeType, providerID string) (string, error) {
	path := s.assetPath(key, mimeType)
	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}
	meta, err := json.Marshal(AssetInfo{ProviderID: providerID, MimeType: mimeType})
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(s.assetMetaPath(key), meta); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) textPath(key string) string {
	return filepath.Join(s.dir, "enhance", key+".json")
}

func (s *Store) assetMetaPath(key string) string {
	return filepath.Join(s.dir, "assets", key+".json")
}

func (s *Store) assetPath(key, mimeType string) string {
	return filepath.Join(s.dir, "assets", key+extForMime(mimeType))
}

func extForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// writeAtomic writes to a temp file in the target directory and renames
// it into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) log(message string) {
	if s.logger != nil {
		s.logger(message)
	}
}
