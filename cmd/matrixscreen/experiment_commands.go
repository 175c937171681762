package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"matrixscreen/internal/attributes"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/omexml"
)

type warningView struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

type unclassifiedView struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type scanSummary struct {
	Root             string             `json:"root"`
	ScanningTemplate string             `json:"scanning_template,omitempty"`
	Slides           []int              `json:"slides"`
	Wells            int                `json:"wells"`
	Fields           int                `json:"fields"`
	Images           int                `json:"images"`
	Stitched         []string           `json:"stitched"`
	Unclassified     []unclassifiedView `json:"unclassified"`
	Warnings         []warningView      `json:"warnings"`
}

func summarize(exp *experiment.Experiment) scanSummary {
	summary := scanSummary{
		Root:         exp.Root(),
		Slides:       exp.Slides(),
		Stitched:     make([]string, 0),
		Unclassified: make([]unclassifiedView, 0),
		Warnings:     make([]warningView, 0),
	}
	if template, ok := exp.ScanningTemplate(); ok {
		summary.ScanningTemplate = template
	}
	for _, w := range exp.Wells() {
		summary.Wells++
		summary.Fields += len(w.Fields())
	}
	for range exp.Images() {
		summary.Images++
	}
	for _, path := range exp.Stitched() {
		summary.Stitched = append(summary.Stitched, relPath(exp.Root(), path))
	}
	for _, u := range exp.Unclassified() {
		summary.Unclassified = append(summary.Unclassified, unclassifiedView{Path: relPath(exp.Root(), u.Path), Reason: u.Reason})
	}
	for _, w := range exp.Warnings() {
		summary.Warnings = append(summary.Warnings, warningView{Kind: w.Kind.String(), Path: relPath(exp.Root(), w.Path), Message: w.Message})
	}
	return summary
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <experiment>",
		Short: "Index an experiment and report its contents and integrity warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			summary := summarize(exp)
			colorize := shouldColorize(cmd.OutOrStdout())
			return emit(cmd, ctx, summary, func() string {
				var b strings.Builder
				for _, line := range renderSectionHeader("Experiment", colorize) {
					b.WriteString(line + "\n")
				}
				b.WriteString(infoLine("Root", summary.Root) + "\n")
				template := "none"
				if summary.ScanningTemplate != "" {
					template = relPath(summary.Root, summary.ScanningTemplate)
				}
				b.WriteString(infoLine("Template", template) + "\n")
				b.WriteString(infoLine("Slides", intList(summary.Slides)) + "\n")
				b.WriteString(infoLine("Wells", strconv.Itoa(summary.Wells)) + "\n")
				b.WriteString(infoLine("Fields", strconv.Itoa(summary.Fields)) + "\n")
				b.WriteString(infoLine("Images", strconv.Itoa(summary.Images)) + "\n")
				b.WriteString(infoLine("Stitched", strconv.Itoa(len(summary.Stitched))) + "\n")
				b.WriteString(infoLine("Unclassified", strconv.Itoa(len(summary.Unclassified))) + "\n")

				warnings := exp.Warnings()
				if len(warnings) > 0 || len(summary.Unclassified) > 0 {
					b.WriteString("\n")
					for _, line := range renderSectionHeader("Warnings", colorize) {
						b.WriteString(line + "\n")
					}
					for _, line := range warningLines(exp.Root(), warnings, colorize) {
						b.WriteString(line + "\n")
					}
					for _, u := range summary.Unclassified {
						b.WriteString(renderStatusLine("Unclassified", statusInfo, fmt.Sprintf("%s (%s)", u.Path, u.Reason), colorize) + "\n")
					}
				}
				return b.String()
			})
		},
	}
}

type wellView struct {
	Slide    int   `json:"slide"`
	U        int   `json:"u"`
	V        int   `json:"v"`
	Width    int   `json:"grid_width"`
	Height   int   `json:"grid_height"`
	Fields   int   `json:"fields"`
	Channels int   `json:"channels"`
	ZPlanes  int   `json:"z_planes"`
	Images   int   `json:"images"`
	Columns  []int `json:"columns"`
	Rows     []int `json:"rows"`
}

func newWellsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wells <experiment>",
		Short: "List the wells of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			views := make([]wellView, 0)
			for _, w := range exp.Wells() {
				views = append(views, wellView{
					Slide:    w.Slide(),
					U:        w.U(),
					V:        w.V(),
					Width:    w.GridWidth(),
					Height:   w.GridHeight(),
					Fields:   len(w.Fields()),
					Channels: w.ChannelCount(),
					ZPlanes:  w.ZCount(),
					Images:   len(w.Images()),
					Columns:  w.Columns(),
					Rows:     w.Rows(),
				})
			}
			return emit(cmd, ctx, views, func() string {
				if len(views) == 0 {
					return "No wells found\n"
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						tagLabel(attributes.S, v.Slide),
						tagLabel(attributes.U, v.U),
						tagLabel(attributes.V, v.V),
						fmt.Sprintf("%dx%d", v.Width, v.Height),
						strconv.Itoa(v.Fields),
						strconv.Itoa(v.Channels),
						strconv.Itoa(v.ZPlanes),
						strconv.Itoa(v.Images),
					})
				}
				return renderTable(
					[]string{"Slide", "U", "V", "Grid", "Fields", "Channels", "Z", "Images"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				) + "\n"
			})
		},
	}
}

type fieldView struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Channels []int  `json:"channels"`
	ZPlanes  []int  `json:"z_planes"`
	Images   int    `json:"images"`
	Metadata string `json:"metadata,omitempty"`
}

func newFieldsCommand(ctx *commandContext) *cobra.Command {
	var slide int
	cmd := &cobra.Command{
		Use:   "fields <experiment> <u> <v>",
		Short: "List the fields of one well",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndices(args[1:], "U", "V")
			if err != nil {
				return err
			}
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			w, err := lookupWell(exp, slide, idx[0], idx[1])
			if err != nil {
				return err
			}
			views := make([]fieldView, 0)
			for _, f := range exp.Fields(w) {
				view := fieldView{X: f.X(), Y: f.Y(), Channels: f.Channels(), ZPlanes: f.ZPlanes(), Images: len(f.Images())}
				if path, err := exp.FieldMetadataPath(f); err == nil {
					view.Metadata = relPath(exp.Root(), path)
				}
				views = append(views, view)
			}
			return emit(cmd, ctx, views, func() string {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						tagLabel(attributes.X, v.X),
						tagLabel(attributes.Y, v.Y),
						intList(v.Channels),
						intList(v.ZPlanes),
						strconv.Itoa(v.Images),
						yesNo(v.Metadata != ""),
					})
				}
				return fmt.Sprintf("Well %s\n", w) + renderTable(
					[]string{"X", "Y", "Channels", "Z", "Images", "Metadata"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				) + "\n"
			})
		},
	}
	cmd.Flags().IntVar(&slide, "slide", -1, "Slide index (default: lowest slide holding the well)")
	return cmd
}

type imageView struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Slide   int    `json:"slide"`
	U       int    `json:"u"`
	V       int    `json:"v"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Channel int    `json:"channel"`
	Z       int    `json:"z"`
}

func newImageView(root string, ref experiment.ImageRef) imageView {
	u, v := ref.Well()
	x, y := ref.Field()
	return imageView{
		Path:    relPath(root, ref.Path),
		Kind:    ref.Kind.String(),
		Slide:   ref.Slide(),
		U:       u,
		V:       v,
		X:       x,
		Y:       y,
		Channel: ref.Channel(),
		Z:       ref.Z(),
	}
}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	var wellFlag string
	var slide int
	var withMetadata bool
	cmd := &cobra.Command{
		Use:   "images <experiment>",
		Short: "List indexed images in S, U, V, X, Y, C, Z order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			var refs []experiment.ImageRef
			if strings.TrimSpace(wellFlag) != "" {
				u, v, err := parseWellFlag(wellFlag)
				if err != nil {
					return err
				}
				w, err := lookupWell(exp, slide, u, v)
				if err != nil {
					return err
				}
				refs = w.Images()
				if withMetadata {
					for _, f := range w.Fields() {
						refs = append(refs, f.Metadata()...)
					}
				}
			} else {
				refs = slices.Collect(exp.Images())
				if withMetadata {
					for _, w := range exp.Wells() {
						for _, f := range w.Fields() {
							refs = append(refs, f.Metadata()...)
						}
					}
				}
			}

			views := make([]imageView, 0, len(refs))
			for _, ref := range refs {
				views = append(views, newImageView(exp.Root(), ref))
			}
			return emit(cmd, ctx, views, func() string {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					channel, z := strconv.Itoa(v.Channel), strconv.Itoa(v.Z)
					if v.Kind != experiment.KindImage.String() {
						channel, z = "-", "-"
					}
					rows = append(rows, []string{
						v.Path,
						titleLabel(v.Kind),
						fmt.Sprintf("S%02d U%02d V%02d", v.Slide, v.U, v.V),
						fmt.Sprintf("X%02d Y%02d", v.X, v.Y),
						channel,
						z,
					})
				}
				return renderTable(
					[]string{"Path", "Kind", "Well", "Field", "C", "Z"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				) + "\n"
			})
		},
	}
	cmd.Flags().StringVar(&wellFlag, "well", "", "Restrict to one well, as U,V")
	cmd.Flags().IntVar(&slide, "slide", -1, "Slide index used with --well")
	cmd.Flags().BoolVar(&withMetadata, "metadata", false, "Include field metadata files")
	return cmd
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	var slide, channel, z int
	cmd := &cobra.Command{
		Use:   "image <experiment> <u> <v> <x> <y>",
		Short: "Print the path of one image",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndices(args[1:], "U", "V", "X", "Y")
			if err != nil {
				return err
			}
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			w, err := lookupWell(exp, slide, idx[0], idx[1])
			if err != nil {
				return err
			}
			f, err := exp.Field(w, idx[2], idx[3])
			if err != nil {
				return err
			}
			ref, err := exp.Image(w, f, channel, z)
			if err != nil {
				return err
			}
			return emit(cmd, ctx, newImageView(exp.Root(), ref), func() string {
				return ref.Path + "\n"
			})
		},
	}
	cmd.Flags().IntVar(&slide, "slide", -1, "Slide index (default: lowest slide holding the well)")
	cmd.Flags().IntVar(&channel, "channel", 0, "Channel index")
	cmd.Flags().IntVar(&z, "z", 0, "Z plane index")
	return cmd
}

type metadataView struct {
	Path          string   `json:"path"`
	SizeX         int      `json:"size_x"`
	SizeY         int      `json:"size_y"`
	SizeZ         int      `json:"size_z"`
	SizeC         int      `json:"size_c"`
	PixelType     string   `json:"pixel_type"`
	PhysicalSizeX float64  `json:"physical_size_x"`
	PhysicalSizeY float64  `json:"physical_size_y"`
	Channels      []string `json:"channels"`
}

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	var slide int
	cmd := &cobra.Command{
		Use:   "metadata <experiment> <u> <v> <x> <y>",
		Short: "Show the OME-XML metadata of one field",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndices(args[1:], "U", "V", "X", "Y")
			if err != nil {
				return err
			}
			exp, err := ctx.openExperiment(args[0])
			if err != nil {
				return err
			}
			w, err := lookupWell(exp, slide, idx[0], idx[1])
			if err != nil {
				return err
			}
			f, err := exp.Field(w, idx[2], idx[3])
			if err != nil {
				return err
			}
			path, err := exp.FieldMetadataPath(f)
			if err != nil {
				return err
			}
			md, err := omexml.Read(path)
			if err != nil {
				return err
			}
			px, _ := md.Pixels()
			view := metadataView{
				Path:          path,
				SizeX:         px.SizeX,
				SizeY:         px.SizeY,
				SizeZ:         px.SizeZ,
				SizeC:         px.SizeC,
				PixelType:     px.Type,
				PhysicalSizeX: px.PhysicalSizeX,
				PhysicalSizeY: px.PhysicalSizeY,
				Channels:      md.ChannelNames(),
			}
			return emit(cmd, ctx, view, func() string {
				var b strings.Builder
				b.WriteString(infoLine("Path", relPath(exp.Root(), view.Path)) + "\n")
				b.WriteString(infoLine("Size", fmt.Sprintf("%dx%d", view.SizeX, view.SizeY)) + "\n")
				b.WriteString(infoLine("Planes", fmt.Sprintf("C=%d Z=%d", view.SizeC, view.SizeZ)) + "\n")
				b.WriteString(infoLine("Pixel type", view.PixelType) + "\n")
				b.WriteString(infoLine("Pixel size", fmt.Sprintf("%gx%g", view.PhysicalSizeX, view.PhysicalSizeY)) + "\n")
				b.WriteString(infoLine("Channels", strings.Join(view.Channels, ", ")) + "\n")
				return b.String()
			})
		},
	}
	cmd.Flags().IntVar(&slide, "slide", -1, "Slide index (default: lowest slide holding the well)")
	return cmd
}
