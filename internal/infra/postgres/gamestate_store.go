package postgres

import (
	"context"
	"fmt"

	"classquest-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// GameStateStore persists participant game-state mutations.
type GameStateStore struct {
	pool *pgxpool.Pool
}

func NewGameStateStore(pool *pgxpool.Pool) *GameStateStore {
	return &GameStateStore{pool: pool}
}

func (s *GameStateStore) SaveParticipant(ctx context.Context, classroomID string, p domain.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (classroom_id, id, name, skin_code, hp, max_hp, mp, max_mp, xp, level, gold)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (classroom_id, id) DO UPDATE SET
			name=EXCLUDED.name, skin_code=EXCLUDED.skin_code,
			hp=EXCLUDED.hp, max_hp=EXCLUDED.max_hp,
			mp=EXCLUDED.mp, max_mp=EXCLUDED.max_mp,
			xp=EXCLUDED.xp, level=EXCLUDED.level, gold=EXCLUDED.gold`,
		classroomID, p.ID, p.Name, p.SkinCode, p.HP, p.MaxHP, p.MP, p.MaxMP, p.XP, p.Level, p.Gold)
	if err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}
