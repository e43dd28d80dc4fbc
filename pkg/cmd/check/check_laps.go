package check

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/config"
	"github.com/mpapenbr/gaterace-service-go/pkg/db/postgres"
	"github.com/mpapenbr/gaterace-service-go/pkg/race"
	bobRepos "github.com/mpapenbr/gaterace-service-go/pkg/repository/bob"
	"github.com/mpapenbr/gaterace-service-go/pkg/utils"
)

var bestTimesLimit int

func NewDisplayLapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "laps trackName",
		Short: "display best times of a track (dev only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayLaps(cmd.Context(), args[0])
		},
	}
	cmd.Flags().IntVar(&bestTimesLimit, "limit", 10, "number of entries")

	return cmd
}

func displayLaps(ctx context.Context, trackName string) error {
	logger := log.GetFromContext(ctx).Named("check")
	// wait for database
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		logger.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	postgresAddr := utils.ExtractFromDBURL(config.DB)
	if err = utils.WaitForTCP(postgresAddr, timeout); err != nil {
		logger.Fatal("database not ready", log.ErrorField(err))
	}
	pool, err := postgres.InitWithURL(config.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	repos := bobRepos.NewRepositoriesFromPool(pool)
	track, err := repos.Track().LoadByName(ctx, trackName)
	if err != nil {
		return err
	}
	times, err := repos.Lap().BestTimes(ctx, track.ID, bestTimesLimit)
	if err != nil {
		return err
	}
	logger.Info("got best times", log.String("track", track.Name),
		log.Int("count", len(times)))
	for i, bt := range times {
		logger.Info("lap", log.Int("rank", i+1),
			log.String("participant", bt.ParticipantID.String()),
			log.String("time", race.FormatLapTime(bt.ElapsedMs)))
	}
	return nil
}
