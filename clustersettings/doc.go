// Package clustersettings builds the cluster configuration snapshot for the
// hosted application.
//
// Values are read from the cluster configuration store under two levels
// derived from the host identity, the shared project defaults and the
// application's own environment. The application level wins:
//
//	<prefix>/<project>/default/...
//	<prefix>/<project>/<environment>/<application>/...
//
// The builder is optional. It is skipped with a recorded disablement when no
// cluster configuration client is available.
package clustersettings
