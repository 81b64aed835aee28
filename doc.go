/*
go-synthset builds synthetic object detection datasets by compositing cut-out
foreground objects onto real background frames.

A single composition runs a fixed sequence of stages.  The foreground is
augmented (package augment), shrunk to fit the background (package
preprocess), rescaled by a per-category factor (package scale), given a
biased random position in the lower part of the frame (package placement) and
alpha blended onto a copy of the background (package render).  The visible
part of the object is then turned into a detection label (package
annotation).

Every stage is synchronous and CPU bound.  A Composer owns its random source
so compositions are reproducible for a given seed; run one Composer per
goroutine, or hand them out from a Pool.

See the synthset command in cmd/synthset for a batch driver that walks a
folder of frames and prepared objects.
*/
package synthset
