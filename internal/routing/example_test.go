package routing_test

import (
	"fmt"
	"time"

	"github.com/abelzeko/water-router/internal/routing"
)

func ExampleRoute() {
	inflow := []float64{1.0, 2.0, 3.0, 5.0, 4.0, 2.0, 1.0}
	p := routing.NewParams(time.Hour, 15*time.Minute, 0.25)

	res, err := routing.Route(inflow, p)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("c0=%.6f c1=%.6f c2=%.6f\n", res.Coefficients.C0, res.Coefficients.C1, res.Coefficients.C2)
	fmt.Printf("%.4f %.4f %.4f\n", res.Outflow[0], res.Outflow[1], res.Outflow[2])
	// Output:
	// c0=-0.142857 c1=0.428571 c2=0.714286
	// 1.0000 0.8571 1.0408
}

func ExampleRouter_Route_strict() {
	r := routing.NewRouter(routing.WithPolicy(routing.PolicyStrict))

	_, err := r.Route([]float64{1, 2, 3}, routing.NewParams(time.Hour, 15*time.Minute, 0.7))
	fmt.Println(err)
	// Output:
	// routing: `x` must be between 0 and 0.5 (inclusive) (got 0.7)
}

func ExampleRouter_Route_advisory() {
	r := routing.NewRouter(routing.WithAdvisoryHandler(func(a routing.Advisory) {
		fmt.Println("warning:", a)
	}))

	res, err := r.Route([]float64{1, 2, 3}, routing.NewParams(time.Hour, 15*time.Minute, 0.7, routing.WithSubReaches(2)))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(res.Outflow))
	// Output:
	// warning: `x` is outside of recommended range [0.0, 0.5]
	// 3
}
