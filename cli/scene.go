package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/fcl/collision"
	"go.viam.com/fcl/config"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/spatialmath"
)

// loadScene reads the scene named by the scene flag and builds an engine over it.
func loadScene(c *cli.Context) (*collision.Engine, []collision.SceneObject, error) {
	path := c.String(sceneFlagPath)
	scene, err := config.ReadScene(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading scene %q", path)
	}
	logger := logging.Global()
	engine, objects, err := collision.LoadScene(scene, logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading scene %q", path)
	}
	logger.Debugw("scene loaded", "path", path, "objects", len(objects))
	return engine, objects, nil
}

func objectName(o *collision.Object) string {
	if name, ok := o.UserData().(string); ok && name != "" {
		return name
	}
	return o.String()
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

func render(w io.Writer, t table.Writer) {
	fmt.Fprintln(w, t.Render())
}

// CheckAction collides every overlapping pair of the scene and prints the contacts.
func CheckAction(c *cli.Context) error {
	engine, _, err := loadScene(c)
	if err != nil {
		return err
	}
	opts := collision.DefaultQueryOptions()
	opts.DistanceTolerance = c.Float64(sceneFlagTolerance)
	opts.EnableContactManifold = c.Bool(sceneFlagManifold)
	opts.TouchingCounts = c.Bool(sceneFlagTouching)
	if n := c.Int(sceneFlagMax); n > 0 {
		opts.MaxContacts = n
	}
	results, queryErr := engine.CollideAll(c.Context, opts)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"A", "B", "Depth", "Normal", "Point"})
	for _, r := range results {
		for _, contact := range r.Contacts {
			t.AppendRow(table.Row{
				objectName(r.A),
				objectName(r.B),
				fmt.Sprintf("%.6f", contact.Depth),
				formatVector(contact.Normal),
				formatVector(contact.Point),
			})
		}
	}
	t.AppendFooter(table.Row{"", "pairs", len(results)})
	render(c.App.Writer, t)
	return queryErr
}

// DistanceAction prints the distance between every pair of objects in the scene.
func DistanceAction(c *cli.Context) error {
	engine, _, err := loadScene(c)
	if err != nil {
		return err
	}
	results, queryErr := engine.DistanceAll(c.Context)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"A", "B", "Distance", "Nearest A", "Nearest B"})
	for _, r := range results {
		t.AppendRow(table.Row{
			objectName(r.A),
			objectName(r.B),
			fmt.Sprintf("%.6f", r.Distance.Distance),
			formatVector(r.Distance.NearestA),
			formatVector(r.Distance.NearestB),
		})
	}
	render(c.App.Writer, t)
	return queryErr
}

func moves(m collision.Motion) bool {
	return !spatialmath.PoseAlmostEqual(m.Start, m.End)
}

// SweepAction runs continuous collision between every pair with at least one moving object.
func SweepAction(c *cli.Context) error {
	engine, objects, err := loadScene(c)
	if err != nil {
		return err
	}
	showAll := c.Bool(sceneFlagAll)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"A", "B", "Time of contact", "Pose A", "Pose B", "Iterations"})
	for i := range objects {
		for j := i + 1; j < len(objects); j++ {
			a, b := objects[i], objects[j]
			if !moves(a.Motion) && !moves(b.Motion) {
				continue
			}
			if err := c.Context.Err(); err != nil {
				return err
			}
			res, err := engine.ContinuousCollide(a.Object, a.Motion, b.Object, b.Motion)
			if err != nil {
				return errors.Wrapf(err, "sweeping %s and %s", a.Name, b.Name)
			}
			if !res.Collides && !showAll {
				continue
			}
			toc := "never"
			if res.Collides {
				toc = fmt.Sprintf("%.6f", res.TimeOfContact)
			}
			t.AppendRow(table.Row{
				a.Name,
				b.Name,
				toc,
				formatVector(res.PoseA.Point()),
				formatVector(res.PoseB.Point()),
				res.Iterations,
			})
		}
	}
	render(c.App.Writer, t)
	return nil
}

// InspectAction prints each object of the scene with its world bounds. Triangle soups also show
// the shape of their bounding volume hierarchy.
func InspectAction(c *cli.Context) error {
	engine, objects, err := loadScene(c)
	if err != nil {
		return err
	}
	cfg := engine.Config()
	fmt.Fprintf(c.App.Writer, "broad phase %s, bvh %s/%s leaf size %d\n",
		cfg.BroadPhase, cfg.BVH.Volume, cfg.BVH.Split, cfg.BVH.LeafSize)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Kind", "AABB min", "AABB max", "BVH nodes", "BVH depth", "Mean leaf"})
	for i, o := range objects {
		box := o.Object.AABB()
		row := table.Row{i, o.Name, o.Object.Shape().Kind(), formatVector(box.Min), formatVector(box.Max), "", "", ""}
		if soup, ok := o.Object.Shape().(*geometry.TriangleSoup); ok {
			s := soup.Tree().Stats()
			row[5], row[6], row[7] = s.Nodes, s.Depth, fmt.Sprintf("%.2f", s.MeanLeafSize)
		}
		t.AppendRow(row)
	}
	render(c.App.Writer, t)
	return nil
}

// RoutesAction prints the shape pairs handled by a dedicated algorithm. Every other pair of convex
// shapes goes through the generic solver.
func RoutesAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"A", "B"})
	for _, r := range collision.Routes() {
		t.AppendRow(table.Row{r.A, r.B})
	}
	render(c.App.Writer, t)
	return nil
}

// SchemaAction prints the JSON schema for the file kind given as the first argument.
func SchemaAction(c *cli.Context) error {
	kind := c.Args().First()
	if kind == "" {
		kind = "scene"
	}
	schema, err := config.SchemaFor(kind)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding schema")
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
