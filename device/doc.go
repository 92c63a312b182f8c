// Package device profiles the host once per process: accelerated compute,
// memory and cores are measured, classified into a tier, and mapped to a
// recommended default model.
//
//	prof := device.NewProfiler().Profile(ctx)
//	fmt.Println(prof.Tier, prof.RecommendedModel)
package device
