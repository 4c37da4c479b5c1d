// Command mozolm-eval replaces the teacher's cmd/score: instead of
// scoring a word corpus against an ARPA-derived fslm.Hashed, it runs
// spec.md §4.8's cross-entropy evaluator (or, with -randgen, §4.9's
// random generator) over a configured model hub.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/golang/glog"

	"github.com/kho/mozolm/eval"
	"github.com/kho/mozolm/models"
	"github.com/kho/mozolm/storage"
)

func main() {
	config := flag.String("config", "", "hub config YAML file")
	corpus := flag.String("corpus", "", "cross-entropy corpus, one sample per line")
	randGen := flag.Bool("randgen", false, "generate random text instead of scoring a corpus")
	prefix := flag.String("prefix", "", "seed prefix for -randgen")
	seed := flag.Int64("seed", 0, "-randgen RNG seed (0 picks one from the current time)")
	flag.Parse()

	if *config == "" {
		glog.Fatal("mozolm-eval: -config is required")
	}
	cfg, err := storage.LoadModelHubConfig(*config)
	if err != nil {
		glog.Fatal(err)
	}
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	hub, err := storage.BuildHub(cfg)
	if err != nil {
		glog.Fatal(err)
	}
	runtime.GC()
	runtime.ReadMemStats(&after)
	glog.Infof("mozolm-eval: hub memory overhead: %.2fMB", float64(after.Alloc-before.Alloc)/float64(1<<20))

	if *randGen {
		s := *seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		fmt.Println(eval.RandGen(hub, *prefix, rand.New(rand.NewSource(s))))
		return
	}

	if *corpus == "" {
		glog.Fatal("mozolm-eval: -corpus is required unless -randgen is set")
	}
	lines, err := models.ReadCorpusLines(*corpus)
	if err != nil {
		glog.Fatal(err)
	}

	start := time.Now()
	result := eval.CrossEntropy(hub, lines)
	glog.Infof("mozolm-eval: scored %d characters in %v", result.TotalChars, time.Since(start))

	fmt.Printf("total_chars: %d\n", result.TotalChars)
	fmt.Printf("oov_count: %d\n", result.OOVCount)
	fmt.Printf("average_bits_per_char: %g\n", result.AverageBitsPerChar)
}
