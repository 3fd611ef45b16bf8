package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedNamespace derives stable ids for fixture rows without one, so
// re-running a seed skips what it already inserted.
var seedNamespace = uuid.MustParse("6f1d9c6e-2b7a-4f57-9a39-0f3e2d6c8b11")

type leagueFixture struct {
	League struct {
		ID            string              `yaml:"id"`
		Name          string              `yaml:"name"`
		InitialBudget int                 `yaml:"initial_budget"`
		RosterLimits  models.RosterLimits `yaml:"roster_limits"`
	} `yaml:"league"`
	Members []struct {
		ID       string `yaml:"id"`
		UserID   string `yaml:"user_id"`
		TeamName string `yaml:"team_name"`
		Role     string `yaml:"role"`
	} `yaml:"members"`
	Players []struct {
		ID        string `yaml:"id"`
		FullName  string `yaml:"full_name"`
		Team      string `yaml:"team"`
		Role      string `yaml:"role"`
		Quotation int    `yaml:"quotation"`
	} `yaml:"players"`
}

type seedData struct {
	League  models.League
	Members []models.Member
	Players []models.Player
}

func fixtureID(raw, kind, name string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.NewSHA1(seedNamespace, []byte(kind+"/"+name)), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, raw, err)
	}
	return id, nil
}

// parseFixture validates a league fixture. Leagues without roster limits
// get defaults.
func parseFixture(data []byte, defaults models.RosterLimits) (seedData, error) {
	var f leagueFixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return seedData{}, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if f.League.Name == "" || f.League.InitialBudget < 1 {
		return seedData{}, fmt.Errorf("league needs a name and a positive initial_budget")
	}

	var out seedData
	leagueID, err := fixtureID(f.League.ID, "league", f.League.Name)
	if err != nil {
		return seedData{}, err
	}
	limits := f.League.RosterLimits
	if len(limits) == 0 {
		limits = defaults
	}
	for role := range limits {
		if _, err := models.ParseRole(string(role)); err != nil {
			return seedData{}, fmt.Errorf("roster_limits: %w", err)
		}
	}
	out.League = models.League{
		ID:            leagueID,
		Name:          f.League.Name,
		Status:        models.LeagueStatusActive,
		InitialBudget: f.League.InitialBudget,
		RosterLimits:  limits,
	}

	admins := 0
	for _, m := range f.Members {
		if m.TeamName == "" {
			return seedData{}, fmt.Errorf("member without team_name")
		}
		role := models.MemberRole(m.Role)
		switch role {
		case "":
			role = models.MemberRoleMember
		case models.MemberRoleAdmin:
			admins++
		case models.MemberRoleMember:
		default:
			return seedData{}, fmt.Errorf("member %s: invalid role %q", m.TeamName, m.Role)
		}
		id, err := fixtureID(m.ID, "member", f.League.Name+"/"+m.TeamName)
		if err != nil {
			return seedData{}, err
		}
		userID, err := fixtureID(m.UserID, "user", m.TeamName)
		if err != nil {
			return seedData{}, err
		}
		out.Members = append(out.Members, models.Member{
			ID:       id,
			LeagueID: leagueID,
			UserID:   userID,
			TeamName: m.TeamName,
			Role:     role,
			Status:   models.MemberStatusActive,
			Budget:   f.League.InitialBudget,
		})
	}
	if admins == 0 {
		return seedData{}, fmt.Errorf("league %s has no ADMIN member", f.League.Name)
	}

	for _, p := range f.Players {
		role, err := models.ParseRole(p.Role)
		if err != nil {
			return seedData{}, fmt.Errorf("player %s: %w", p.FullName, err)
		}
		id, err := fixtureID(p.ID, "player", p.FullName+"/"+p.Team)
		if err != nil {
			return seedData{}, err
		}
		quotation := p.Quotation
		if quotation < 1 {
			quotation = 1
		}
		out.Players = append(out.Players, models.Player{
			ID:        id,
			FullName:  p.FullName,
			Team:      p.Team,
			Role:      role,
			Quotation: quotation,
		})
	}
	return out, nil
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a league fixture (league, members, players) into Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read fixture: %w", err)
			}
			fixture, err := parseFixture(data, s.Rules.RosterLimits)
			if err != nil {
				return err
			}

			pool, err := pgxpool.New(cmd.Context(), s.DB.DSN())
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer pool.Close()

			return pgx.BeginFunc(cmd.Context(), pool, func(tx pgx.Tx) error {
				return seed(cmd.Context(), tx, fixture)
			})
		},
	}
	cmd.Flags().StringVar(&path, "fixture", "go/config/seed_league.yaml", "path to the league fixture")
	return cmd
}

type seedCounts struct {
	total, inserted, skipped int
}

func (c *seedCounts) add(inserted bool) {
	c.total++
	if inserted {
		c.inserted++
	} else {
		c.skipped++
	}
}

func seed(ctx context.Context, tx pgx.Tx, data seedData) error {
	limits, err := json.Marshal(data.League.RosterLimits)
	if err != nil {
		return fmt.Errorf("failed to encode roster limits: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO leagues (id, name, status, initial_budget, roster_limits)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO NOTHING`,
		data.League.ID, data.League.Name, string(data.League.Status), data.League.InitialBudget, string(limits))
	if err != nil {
		return fmt.Errorf("failed to insert league: %w", err)
	}
	log.Info().
		Str("league_id", data.League.ID.String()).
		Bool("inserted", tag.RowsAffected() == 1).
		Msg("league seeded")

	var members seedCounts
	for _, m := range data.Members {
		tag, err := tx.Exec(ctx, `
			INSERT INTO league_members (id, league_id, user_id, team_name, role, status, budget)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (league_id, user_id) DO NOTHING`,
			m.ID, m.LeagueID, m.UserID, m.TeamName, string(m.Role), string(m.Status), m.Budget)
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.TeamName, err)
		}
		members.add(tag.RowsAffected() == 1)
	}

	var players seedCounts
	for _, p := range data.Players {
		tag, err := tx.Exec(ctx, `
			INSERT INTO players (id, full_name, team, role, quotation)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.FullName, p.Team, string(p.Role), p.Quotation)
		if err != nil {
			return fmt.Errorf("failed to insert player %s: %w", p.FullName, err)
		}
		players.add(tag.RowsAffected() == 1)
	}

	log.Info().
		Int("members_total", members.total).
		Int("members_inserted", members.inserted).
		Int("members_skipped", members.skipped).
		Int("players_total", players.total).
		Int("players_inserted", players.inserted).
		Int("players_skipped", players.skipped).
		Msg("seed complete")
	return nil
}
