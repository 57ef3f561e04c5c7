package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/flowplane/flowplane/internal/domain"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &domain.Team{Org: "org-a", Name: "team-a", Status: domain.TeamActive}
	if err := NewTeamRepository(db).Create(ctx, team); err != nil {
		t.Fatalf("create team: %v", err)
	}

	boom := errors.New("boom")
	err := RunInTx(ctx, db, func(txRepos *Repositories) error {
		c := makeCluster(team.Name, "checkout")
		if err := txRepos.Clusters.Create(ctx, c); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx must propagate the callback's error, got %v", err)
	}

	clusters, err := NewClusterRepository(db).List(ctx, team.Name, domain.Page{Limit: 10}, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(clusters) != 0 {
		t.Fatalf("a failed RunInTx callback must leave no rows behind, found %d", len(clusters))
	}
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	team := &domain.Team{Org: "org-a", Name: "team-a", Status: domain.TeamActive}
	if err := NewTeamRepository(db).Create(ctx, team); err != nil {
		t.Fatalf("create team: %v", err)
	}

	err := RunInTx(ctx, db, func(txRepos *Repositories) error {
		c := makeCluster(team.Name, "checkout")
		return txRepos.Clusters.Create(ctx, c)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	clusters, err := NewClusterRepository(db).List(ctx, team.Name, domain.Page{Limit: 10}, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("a successful RunInTx callback must commit, found %d clusters", len(clusters))
	}
}
