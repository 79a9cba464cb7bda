package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/types"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the scenes visible to the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := fromContext(cmd)
		if err != nil {
			return err
		}
		scenes, err := a.client.Scenes(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, s := range scenes {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	},
}

var objectCmd = &cobra.Command{
	Use:   "object <sceneID> <objectID>",
	Short: "Print the full metadata of one object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := fromContext(cmd)
		if err != nil {
			return err
		}
		id, err := parseObjectID(args[1])
		if err != nil {
			return err
		}
		scene, err := loadScene(cmd, a, args[0])
		if err != nil {
			return err
		}
		obj, err := scene.DB.Object(cmd.Context(), id)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(obj.Data())
	},
}

var descendantsCmd = &cobra.Command{
	Use:   "descendants <sceneID> <objectID>",
	Short: "Print the descendant ids of an object, one per line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := fromContext(cmd)
		if err != nil {
			return err
		}
		id, err := parseObjectID(args[1])
		if err != nil {
			return err
		}
		scene, err := loadScene(cmd, a, args[0])
		if err != nil {
			return err
		}
		obj, err := scene.DB.Object(cmd.Context(), id)
		if err != nil {
			return err
		}
		ids := scene.DB.Descendants(cmd.Context(), obj)
		for _, d := range ids {
			fmt.Fprintln(os.Stdout, d)
		}
		a.log.Debug("descendants", zap.Int64("id", int64(id)), zap.Int("count", len(ids)))
		return nil
	},
}

func parseObjectID(s string) (types.ObjectID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	return types.ObjectID(n), nil
}
