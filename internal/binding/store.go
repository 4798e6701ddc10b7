package binding

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charhub/ttsrelay/internal/database"
	"github.com/charhub/ttsrelay/internal/logger"
)

// Binding 角色到音色的绑定关系。
type Binding struct {
	CharacterID string `json:"character_id"`
	VoiceID     string `json:"voice_id"`
	UpdatedAt   string `json:"updated_at"`
}

// Store 音色绑定存储。
// 中继网关按角色查询音色，查不到或查询出错时回退到默认音色。
type Store struct {
	db           *database.DB
	defaultVoice string
}

// NewStore 创建音色绑定存储。
func NewStore(db *database.DB, defaultVoice string) *Store {
	return &Store{db: db, defaultVoice: defaultVoice}
}

// DefaultVoice 返回配置的默认音色 ID。
func (s *Store) DefaultVoice() string {
	return s.defaultVoice
}

// Lookup 查询角色绑定的音色。
// 未绑定时返回 ok=false，不视为错误。
func (s *Store) Lookup(ctx context.Context, characterID string) (string, bool, error) {
	var voiceID string
	err := s.db.QueryRowContext(ctx,
		"SELECT voice_id FROM tts_bindings WHERE character_id = ?", characterID).Scan(&voiceID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("查询音色绑定失败: %w", err)
	}
	return voiceID, true, nil
}

// Resolve 解析角色应使用的音色 ID。
// 查询失败或没有绑定时返回默认音色，音色解析对请求永远不致命。
func (s *Store) Resolve(ctx context.Context, characterID string) string {
	voiceID, ok, err := s.Lookup(ctx, characterID)
	if err != nil {
		logger.Warnf("[binding] 查询角色 %s 的音色失败，使用默认音色: %v", characterID, err)
		return s.defaultVoice
	}
	if !ok {
		logger.Debugf("[binding] 角色 %s 未绑定音色，使用默认音色 %s", characterID, s.defaultVoice)
		return s.defaultVoice
	}
	return voiceID
}

// Put 新增或更新角色的音色绑定。
func (s *Store) Put(ctx context.Context, characterID, voiceID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tts_bindings (character_id, voice_id, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(character_id) DO UPDATE SET
		   voice_id = excluded.voice_id,
		   updated_at = CURRENT_TIMESTAMP`,
		characterID, voiceID)
	if err != nil {
		return fmt.Errorf("保存音色绑定失败: %w", err)
	}
	return nil
}

// Delete 删除角色的音色绑定。
// 绑定不存在时返回错误。
func (s *Store) Delete(ctx context.Context, characterID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tts_bindings WHERE character_id = ?", characterID)
	if err != nil {
		return fmt.Errorf("删除音色绑定失败: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("角色 %s 没有音色绑定", characterID)
	}
	return nil
}

// List 列出全部音色绑定。
func (s *Store) List(ctx context.Context) ([]Binding, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT character_id, voice_id, updated_at FROM tts_bindings ORDER BY character_id")
	if err != nil {
		return nil, fmt.Errorf("查询音色绑定列表失败: %w", err)
	}
	defer rows.Close()

	bindings := []Binding{}
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.CharacterID, &b.VoiceID, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("读取音色绑定记录失败: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
