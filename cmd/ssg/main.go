package main

import (
	"context"

	"ssg-backend/cmd/ssg/commands"
	"ssg-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "ssg")
	commands.ExecuteContext(context.Background())
}
