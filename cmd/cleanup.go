package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/manifoldco/promptui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DominicWuest/calcbench/pkg/calcbench"
)

var cleanupContainersOnly bool
var cleanupAgree bool

var cleanupCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"prune", "cleanup"},
	Short:   "Clean all docker artifacts created by calcbench",
	Long: `This command removes all docker artifacts created by calcbench.
A run kills the containers it started once it is done, but containers can be left behind if calcbench itself is killed.
Left behind containers block later runs, since container names are derived from service names.

Both running and stopped containers are removed, as well as all service images built, unless --containers is passed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			logrus.Fatalf("Couldn't create docker client - %v", err)
		}
		defer cli.Close()

		containers, images, err := listArtifacts(ctx, cli, !cleanupContainersOnly)
		if err != nil {
			logrus.Fatal(err)
		}

		if len(containers)+len(images) == 0 {
			logrus.Info("Nothing to remove. Exiting...")
			return
		}

		logrus.Infof("About to delete %d containers and %d images.", len(containers), len(images))

		if !cleanupAgree {
			prompt := promptui.Prompt{
				Label:     "Proceed",
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				logrus.Info("Exiting...")
				os.Exit(0)
			}
		}

		if err := removeArtifacts(ctx, cli, containers, images); err != nil {
			logrus.Fatal(err)
		}

		logrus.Info("Done cleaning up.")
	},
}

func labelFilter() filters.Args {
	return filters.NewArgs(filters.KeyValuePair{
		Key:   "label",
		Value: calcbench.Label,
	})
}

// listArtifacts lists all containers and, if withImages is set, all images labelled by calcbench
func listArtifacts(ctx context.Context, cli *client.Client, withImages bool) ([]types.Container, []image.Summary, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: labelFilter(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't list docker containers - %v", err)
	}

	if !withImages {
		return containers, nil, nil
	}

	images, err := cli.ImageList(ctx, image.ListOptions{
		All:     true,
		Filters: labelFilter(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't list docker images - %v", err)
	}
	return containers, images, nil
}

// removeArtifacts force-removes the passed containers first, then the images they were created from
func removeArtifacts(ctx context.Context, cli *client.Client, containers []types.Container, images []image.Summary) error {
	for _, c := range containers {
		logrus.Infof("Deleting container %s (ID: %s)", c.Names[0][1:], c.ID)
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove container with ID %s - %v", c.ID, err)
		}
	}

	for _, i := range images {
		name := i.ID
		if len(i.RepoTags) > 0 {
			name = i.RepoTags[0]
		}
		logrus.Infof("Deleting image %s (ID: %s)", name, i.ID)
		if _, err := cli.ImageRemove(ctx, i.ID, image.RemoveOptions{
			PruneChildren: true,
			Force:         true,
		}); err != nil {
			return fmt.Errorf("failed to remove image with ID %s - %v", i.ID, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVarP(&cleanupContainersOnly, "containers", "c", false, "Only delete containers, no images.")
	cleanupCmd.Flags().BoolVarP(&cleanupAgree, "assume-yes", "y", false, `Bypass "Are you sure?" message.`)
}
