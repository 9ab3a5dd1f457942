// Package influxdb writes Android TV player telemetry to InfluxDB.
//
// It wraps influxdb-client-go v2 with the bridge's connection handling and
// two measurements:
//   - androidtv_player: availability, state, source and volume per poll
//   - androidtv_command: outcome and duration of every hub command
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Write failures are logged and counted in Stats.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePlayerState(influxdb.PlayerPoint{EntryID: id, State: "playing", Available: true})
package influxdb
