package db

import (
	"strings"
	"testing"

	"github.com/zulandar/logyard/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "logyard",
			want:     "root@tcp(127.0.0.1:3306)/logyard?parseTime=true",
		},
		{
			name:     "custom host and port",
			user:     "trainer",
			host:     "10.0.0.5",
			port:     3307,
			database: "logs",
			want:     "trainer@tcp(10.0.0.5:3307)/logs?parseTime=true",
		},
		{
			name:     "ipv6 host",
			user:     "root",
			host:     "::1",
			port:     3306,
			database: "logyard",
			want:     "root@tcp([::1]:3306)/logyard?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("postgres", "x")
	if err == nil || !strings.Contains(err.Error(), `unknown driver "postgres"`) {
		t.Errorf("err = %v", err)
	}
}

func TestConnect_BadMySQLDSN(t *testing.T) {
	_, err := Connect(DriverMySQL, "not a dsn")
	if err == nil || !strings.HasPrefix(err.Error(), "db: mysql dsn:") {
		t.Errorf("err = %v", err)
	}
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)

	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}

	line := models.TrainingLogLine{TrainingID: "t1", Content: "hello"}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if line.ID == 0 {
		t.Error("ID not assigned")
	}
}

func TestAllModels_Count(t *testing.T) {
	if n := len(AllModels()); n != 2 {
		t.Errorf("AllModels() returned %d models, want 2", n)
	}
}
