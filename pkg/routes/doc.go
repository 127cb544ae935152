/*
Package routes turns a delimited table of trains into undirected station-pair
groups.

A table row names a train and the two stations it runs between. Rows are
parsed into TrainRecord values, and Group collects them under a RouteKey that
ignores direction, so a route listed both ways in the source table ends up on
a single page. Parsing never stops at a bad row: every rejected row is
reported as a RowError alongside the records that did parse.
*/
package routes
