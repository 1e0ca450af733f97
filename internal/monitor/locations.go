package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ResolveLocations maps configured location names onto guild channels. When a
// category is configured, only channels under it are considered. Names with no
// matching channel are logged and skipped so one renamed channel does not take
// the whole monitor down.
func ResolveLocations(
	ctx context.Context, restClient rest.Rest, guildID, categoryID snowflake.ID,
	names []string, logger *zap.Logger,
) ([]Location, error) {
	channels, err := restClient.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}

	byName := make(map[string]snowflake.ID, len(channels))

	for _, ch := range channels {
		if categoryID != 0 {
			parent := ch.ParentID()
			if parent == nil || *parent != categoryID {
				continue
			}
		}

		byName[strings.ToLower(ch.Name())] = ch.ID()
	}

	locations := make([]Location, 0, len(names))

	for _, name := range names {
		channelID, ok := byName[strings.ToLower(name)]
		if !ok {
			logger.Warn("No channel found for configured location",
				zap.String("location", name))

			continue
		}

		locations = append(locations, Location{Name: name, ChannelID: channelID})
	}

	return locations, nil
}
