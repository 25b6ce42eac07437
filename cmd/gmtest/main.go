// Command gmtest fits a global motion model to a job's correspondences, warps
// the reference frame through the quantized model and reports how well the
// prediction matches the current frame.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"globalmotion/internal/config"
	"globalmotion/internal/cvref"
	gmimage "globalmotion/internal/image"
	"globalmotion/internal/motion"
	"globalmotion/internal/version"
	"globalmotion/internal/warp"
	"globalmotion/pkg/geometry"
)

type options struct {
	jobPath string
	outPath string
	workers int
	cv      bool
	debug   bool
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	jobPath := flag.String("job", "", "Path to job file (.json, .yaml)")
	ref := flag.String("ref", "", "Reference frame (overrides job)")
	cur := flag.String("cur", "", "Current frame (overrides job)")
	family := flag.String("model", "", "Model family: translation, rotzoom, affine, homography")
	useRANSAC := flag.Bool("ransac", false, "Reject outlier correspondences with RANSAC")
	out := flag.String("out", "", "Prediction output path (.png, .tif, .bmp)")
	workers := flag.Int("workers", 0, "Warp worker goroutines (0 = GOMAXPROCS)")
	cv := flag.Bool("cv", false, "Cross-check the prediction against an OpenCV warp (8-bit only)")
	debug := flag.Bool("debug", false, "Log fitting progress")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("gmtest"))
		return
	}
	if *jobPath == "" {
		fmt.Println("Usage: gmtest -job <job.yaml> [-ref <frame>] [-cur <frame>] [-model <family>] [-ransac] [-out <pred.png>] [-cv]")
		os.Exit(1)
	}

	job, err := config.Load(*jobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load job: %v\n", err)
		os.Exit(1)
	}

	// Flags override the job file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ref":
			job.ReferencePath = *ref
		case "cur":
			job.CurrentPath = *cur
		case "ransac":
			job.RANSAC.Enabled = *useRANSAC
		case "workers":
			job.Workers = *workers
		}
	})
	if *family != "" {
		t, err := motion.ParseTransformType(*family)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad -model: %v\n", err)
			os.Exit(1)
		}
		job.Family = t
	}
	if err := job.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid job: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		jobPath: *jobPath,
		outPath: *out,
		workers: job.Workers,
		cv:      *cv,
		debug:   *debug,
	}
	if opts.outPath == "" {
		opts.outPath = job.GetOutputPath(*jobPath)
	}

	if job.BitDepth == 8 {
		err = run[uint8](job, opts)
	} else {
		err = run[uint16](job, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func loadPlane[T warp.Sample](path string, bitDepth int) (*warp.Plane[T], error) {
	frame, err := gmimage.Load(path)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %s: %dx%d %s\n", path, frame.Width(), frame.Height(), frame.Format)
	if bitDepth == 8 && frame.Is16Bit() {
		log.Printf("warning: %s has 16-bit samples but bit_depth is 8; low bits are dropped", path)
	}
	return gmimage.Luma[T](frame, bitDepth)
}

func run[T warp.Sample](job *config.Job, opts options) error {
	fmt.Printf("=== Loading frames ===\n")
	ref, err := loadPlane[T](job.GetReferencePath(opts.jobPath), job.BitDepth)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	cur, err := loadPlane[T](job.GetCurrentPath(opts.jobPath), job.BitDepth)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}

	fm, err := fit(job, opts, cur.Width, cur.Height)
	if err != nil {
		return err
	}

	m, err := motion.Quantize(fm, job.Family)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Quantized model ===\n%s\n", m.String())

	params := warp.Params{
		Region: job.RegionOr(cur.Width, cur.Height),
		SubX:   job.SubX,
		SubY:   job.SubY,
		XScale: job.XScale,
		YScale: job.YScale,
	}
	r := params.Region
	pred, err := warp.NewPlane[T](r.Width, r.Height, job.BitDepth)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Warping %dx%d at (%d,%d) ===\n", r.Width, r.Height, r.X, r.Y)
	if err := warp.WarpPlaneParallel(&m, ref, pred, params, opts.workers); err != nil {
		return fmt.Errorf("warp failed: %w", err)
	}

	ratio, err := warp.ErrorAdvantage(&m, ref, cur, params)
	if err != nil {
		fmt.Printf("Error advantage: unavailable (%v)\n", err)
	} else {
		fmt.Printf("Error advantage: %.4f (warp SSE / zero-motion SSE)\n", ratio)
	}

	target, err := crop(cur, r)
	if err != nil {
		return err
	}
	psnr, err := cvref.PSNR(target, pred)
	if err != nil {
		return err
	}
	fmt.Printf("Prediction PSNR: %.2f dB\n", psnr)

	if opts.cv {
		if err := crossCheck(ref, pred, m, params); err != nil {
			fmt.Printf("OpenCV cross-check skipped: %v\n", err)
		}
	}

	if err := gmimage.SavePlane(opts.outPath, pred); err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	fmt.Printf("\nPrediction written to %s\n", opts.outPath)
	return nil
}

// fit estimates the float model and prints residual statistics.
func fit(job *config.Job, opts options, w, h int) (motion.FloatModel, error) {
	fmt.Printf("\n=== Fitting %s to %d correspondences ===\n", job.Family, len(job.Correspondences))
	src, dst := job.Points()
	fmt.Printf("Coverage: %.1f%% of frame\n", 100*geometry.Coverage(src, w, h))

	var fm motion.FloatModel
	var err error
	if job.RANSAC.Enabled {
		var inliers []int
		fm, inliers, err = motion.RANSAC(job.Family, src, dst, job.RANSACOptions(opts.debug))
		if err == nil {
			fmt.Printf("RANSAC inliers: %d/%d\n", len(inliers), len(src))
		}
	} else {
		fm, err = motion.Fit(job.Family, src, dst)
	}
	if err != nil {
		return motion.FloatModel{}, fmt.Errorf("fit failed: %w", err)
	}
	fmt.Printf("Model: %v\n", fm.Params[:job.Family.Params()])

	// Fit normalizes its inputs, so measure on fresh copies
	src, dst = job.Points()
	errs := motion.ReprojectionErrors(fm, src, dst)
	mean, std := stat.MeanStdDev(errs, nil)
	fmt.Printf("Residual: mean %.3f px, stddev %.3f px, max %.3f px\n", mean, std, floats.Max(errs))
	if opts.debug {
		for i, e := range errs {
			log.Printf("correspondence %d: %.3f px", i, e)
		}
	}
	return fm, nil
}

// crossCheck compares the fixed-point prediction with an OpenCV warp of the
// dequantized model.
func crossCheck[T warp.Sample](ref, pred *warp.Plane[T], m motion.Model, params warp.Params) error {
	if ref.BitDepth != 8 || params.SubX || params.SubY {
		return fmt.Errorf("needs an unsubsampled 8-bit plane")
	}
	if (params.XScale != 0 && params.XScale != warp.ScaleUnity) || (params.YScale != 0 && params.YScale != warp.ScaleUnity) {
		return fmt.Errorf("needs unit scale")
	}
	ref8, err := as8Bit(ref)
	if err != nil {
		return err
	}
	pred8, err := as8Bit(pred)
	if err != nil {
		return err
	}

	cvPred, err := cvref.Warp(m.Dequantize(), ref8, params.Region)
	if err != nil {
		return err
	}
	psnr, err := cvref.PSNR(cvPred, pred8)
	if err != nil {
		return err
	}
	fmt.Printf("OpenCV agreement: %.2f dB\n", psnr)
	return nil
}

func as8Bit[T warp.Sample](p *warp.Plane[T]) (*warp.Plane[uint8], error) {
	out, err := warp.NewPlane[uint8](p.Width, p.Height, 8)
	if err != nil {
		return nil, err
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			out.Set(x, y, uint8(p.At(x, y)))
		}
	}
	return out, nil
}

func crop[T warp.Sample](p *warp.Plane[T], r geometry.RectInt) (*warp.Plane[T], error) {
	if !r.Within(p.Width, p.Height) {
		return nil, fmt.Errorf("region %+v outside %dx%d frame: %w", r, p.Width, p.Height, warp.ErrInvalidRegion)
	}
	out, err := warp.NewPlane[T](r.Width, r.Height, p.BitDepth)
	if err != nil {
		return nil, err
	}
	for y := 0; y < r.Height; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Width], p.Pix[(r.Y+y)*p.Stride+r.X:])
	}
	return out, nil
}
