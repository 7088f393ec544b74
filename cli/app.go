// Package cli contains the fcl command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/fcl/logging"
)

const (
	generalFlagDebug = "debug"

	sceneFlagPath      = "scene"
	sceneFlagTolerance = "tolerance"
	sceneFlagManifold  = "manifold"
	sceneFlagTouching  = "touching"
	sceneFlagMax       = "max-contacts"
	sceneFlagAll       = "all"
)

func sceneFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     sceneFlagPath,
		Aliases:  []string{"s"},
		Required: true,
		Usage:    "load the scene from `FILE`",
	}
}

var app = &cli.App{
	Name:            "fcl",
	Usage:           "run collision queries over scene files",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Before: func(c *cli.Context) error {
		logger := logging.NewBlankLogger("fcl")
		if c.Bool(generalFlagDebug) {
			logger = logging.NewDebugLogger("fcl")
		}
		logging.ReplaceGlobal(logger)
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:      "check",
			Usage:     "report every pair of objects in contact at their start poses",
			UsageText: "fcl check --scene <scene.json5> [--tolerance <d>] [--manifold] [--touching]",
			Flags: []cli.Flag{
				sceneFlag(),
				&cli.Float64Flag{
					Name:  sceneFlagTolerance,
					Usage: "also report pairs separated by at most this distance",
				},
				&cli.BoolFlag{
					Name:  sceneFlagManifold,
					Usage: "report a contact manifold instead of the deepest contact",
				},
				&cli.IntFlag{
					Name:  sceneFlagMax,
					Usage: "cap the number of contacts per pair",
				},
				&cli.BoolFlag{
					Name:  sceneFlagTouching,
					Usage: "count exactly touching shapes as colliding",
				},
			},
			Action: CheckAction,
		},
		{
			Name:      "distance",
			Usage:     "report the distance between every pair of objects at their start poses",
			UsageText: "fcl distance --scene <scene.json5>",
			Flags:     []cli.Flag{sceneFlag()},
			Action:    DistanceAction,
		},
		{
			Name:      "sweep",
			Usage:     "find when moving objects first touch along their motions",
			UsageText: "fcl sweep --scene <scene.json5> [--all]",
			Flags: []cli.Flag{
				sceneFlag(),
				&cli.BoolFlag{
					Name:  sceneFlagAll,
					Usage: "also list pairs that never touch",
				},
			},
			Action: SweepAction,
		},
		{
			Name:      "inspect",
			Usage:     "list the objects of a scene with their bounds and hierarchy statistics",
			UsageText: "fcl inspect --scene <scene.json5>",
			Flags:     []cli.Flag{sceneFlag()},
			Action:    InspectAction,
		},
		{
			Name:      "schema",
			Usage:     "print the JSON schema of an engine config or scene file",
			UsageText: "fcl schema <config|scene>",
			Action:    SchemaAction,
		},
		{
			Name:   "routes",
			Usage:  "list the shape pairs with a dedicated algorithm",
			Action: RoutesAction,
		},
	},
}

// NewApp returns a new app with the CLI command structure, writing to the given streams.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
