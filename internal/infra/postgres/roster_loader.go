package postgres

import (
	"context"
	"errors"
	"fmt"

	"classquest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RosterLoader loads classroom metadata and its roster from Postgres.
type RosterLoader struct {
	pool *pgxpool.Pool
}

func NewRosterLoader(pool *pgxpool.Pool) *RosterLoader {
	return &RosterLoader{pool: pool}
}

func (l *RosterLoader) LoadClassroom(ctx context.Context, classroomID string) (domain.Classroom, []domain.Participant, error) {
	var classroom domain.Classroom
	err := l.pool.QueryRow(ctx,
		`SELECT id, name, join_code FROM classrooms WHERE id=$1`, classroomID,
	).Scan(&classroom.ID, &classroom.Name, &classroom.JoinCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Classroom{}, nil, domain.ErrClassroomNotFound
	}
	if err != nil {
		return domain.Classroom{}, nil, fmt.Errorf("load classroom: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, name, skin_code, hp, max_hp, mp, max_mp, xp, level, gold
		 FROM participants WHERE classroom_id=$1 ORDER BY name, id`, classroomID)
	if err != nil {
		return domain.Classroom{}, nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.SkinCode, &p.HP, &p.MaxHP, &p.MP, &p.MaxMP, &p.XP, &p.Level, &p.Gold); err != nil {
			return domain.Classroom{}, nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Classroom{}, nil, fmt.Errorf("iterate roster: %w", err)
	}
	return classroom, participants, nil
}
