package main

import (
	"context"
	"flag"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"civicwatch/blob"
	"civicwatch/common"
	"civicwatch/db"
	"civicwatch/geocoder"
	"civicwatch/report"
	"civicwatch/server"
)

var (
	resolveThreshold = flag.Int("resolve_threshold", report.DefaultResolveThreshold,
		"Distinct resolved votes that retire a report.")
	geocoderURL = flag.String("geocoder_url", "https://nominatim.openstreetmap.org",
		"Base URL of the Nominatim-compatible geocoder.")
	geocoderAgent = flag.String("geocoder_user_agent", "civicwatch",
		"User agent sent to the geocoder.")
)

func main() {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()
	flag.Parse()

	dbc, err := common.DBConnect()
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbc.Close()

	blobCfg, err := blob.LoadConfig()
	if err != nil {
		log.Fatalf("Image store misconfigured: %v", err)
	}
	images, err := blob.NewImageStore(context.Background(), blobCfg)
	if err != nil {
		log.Fatalf("Failed to set up the image store: %v", err)
	}

	svc := report.NewService(db.NewStore(dbc), images, *resolveThreshold)
	log.Infof("Resolve threshold: %d votes", svc.ResolveThreshold())

	h := server.NewHandler(svc, geocoder.NewNominatim(*geocoderURL, *geocoderAgent))
	if err := server.StartService(h); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
