// Command demo connects two movie-graph nodes and walks the result.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/rlch/norm"
	"github.com/rlch/norm/example/movies/models"
)

func main() {
	ctx := context.Background()

	cfg, err := norm.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	sess, err := norm.NewDriverSession(ctx, *cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sess.Close(ctx) }()

	keanu := norm.NewNode[models.Person]()
	keanu.Name = "Keanu Reeves"
	matrix := norm.NewNode[models.Movie]()
	matrix.Title = "The Matrix"

	res, err := sess.Run(ctx,
		"CREATE (p:Person {uuid: $pu, name: $pn}), (m:Movie {uuid: $mu, title: $mt}) RETURN elementId(p), elementId(m)",
		map[string]any{
			"pu": keanu.GetUUID(), "pn": keanu.Name,
			"mu": matrix.GetUUID(), "mt": matrix.Title,
		})
	if err != nil {
		log.Fatal(err)
	}

	row, _ := res.First()
	keanu.SetElementID(row[0].(string))
	matrix.SetElementID(row[1].(string))

	acted, err := models.ActedInMovies.Manager(sess, keanu, "actedIn")
	if err != nil {
		log.Fatal(err)
	}

	rel, err := acted.Connect(ctx, matrix, map[string]any{"role": "Neo"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("connected with role %q\n", rel.(*models.ActedIn).Role)

	movies, err := acted.All(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range movies {
		fmt.Println("acted in:", m.(*models.Movie).Title)
	}
}
